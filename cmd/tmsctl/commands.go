package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mohammed-shakir/tms-layers/internal/core/router"
	"github.com/mohammed-shakir/tms-layers/internal/invalidation"
	"github.com/mohammed-shakir/tms-layers/internal/invalidation/kafkaproducer"
	"github.com/mohammed-shakir/tms-layers/internal/service"
	"github.com/mohammed-shakir/tms-layers/internal/store"
)

func (c *cli) seedCmd() *cobra.Command {
	var notify bool
	cmd := &cobra.Command{
		Use:   "seed <file>",
		Short: "Load datasets and layers from a YAML file",
		Long: `Seed upserts every dataset and layer of the YAML file into the store.
Datasets are written before layers so layers can reference them. With
--publish a change event per record is sent so running servers drop their
cached documents.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := store.LoadSeed(cmd.Context(), c.store, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d datasets, %d layers\n", len(s.Datasets), len(s.Layers))
			if !notify {
				return nil
			}

			evs := make([]invalidation.Event, 0, len(s.Datasets)+len(s.Layers))
			for _, d := range s.Datasets {
				evs = append(evs, invalidation.Event{Op: invalidation.OpUpdate, Kind: invalidation.KindDataset, ID: d.ID})
			}
			for _, l := range s.Layers {
				evs = append(evs, invalidation.Event{Op: invalidation.OpUpdate, Kind: invalidation.KindLayer, ID: l.ID})
			}
			return c.publish(cmd, evs...)
		},
	}
	cmd.Flags().BoolVar(&notify, "publish", false, "publish change events for the seeded records")
	return cmd
}

func (c *cli) publishCmd() *cobra.Command {
	var (
		op       string
		revision uint64
	)
	cmd := &cobra.Command{
		Use:   "publish <layer|dataset> <id>",
		Short: "Publish a change event for one record",
		Long: `Publish sends a change event to the invalidation topic. Servers consuming
the topic drop the cached documents of the layer, or of every layer of the
dataset.

Example:
  tmsctl publish layer sst-daily
  tmsctl publish dataset sst --op delete --revision 42`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.publish(cmd, invalidation.Event{Op: op, Kind: args[0], ID: args[1], Revision: revision})
		},
	}
	cmd.Flags().StringVar(&op, "op", invalidation.OpUpdate, "update, delete or publish")
	cmd.Flags().Uint64Var(&revision, "revision", 0, "record revision, 0 to always apply")
	return cmd
}

func (c *cli) publish(cmd *cobra.Command, evs ...invalidation.Event) error {
	p, err := kafkaproducer.New(kafkaproducer.Config{
		Brokers: c.brokers,
		Topic:   c.topic,
	}, c.log)
	if err != nil {
		return err
	}
	for _, ev := range evs {
		if err := p.Publish(cmd.Context(), ev); err != nil {
			_ = p.Close()
			return err
		}
	}
	if err := p.Close(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "published %d change events to %s\n", len(evs), c.topic)
	return nil
}

func (c *cli) renderCmd() *cobra.Command {
	var (
		baseURL string
		section string
		indent  bool
	)
	cmd := &cobra.Command{
		Use:   "render <layer-id>",
		Short: "Print the config document of a layer",
		Long: `Render builds the document a map client receives for the layer. Relative
legend media URLs are resolved against --base-url.

Example:
  tmsctl render sst-daily --base-url https://maps.example.org
  tmsctl render sst-daily --section params`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if section != "" && !slices.Contains(service.Sections, section) {
				return fmt.Errorf("unknown section %q (valid: %s)", section, strings.Join(service.Sections, ", "))
			}
			svc := c.service()

			var (
				out []byte
				err error
			)
			if section == "" {
				out, err = svc.Document(cmd.Context(), args[0], baseURL)
			} else {
				out, err = svc.Section(cmd.Context(), args[0], baseURL, section)
			}
			if err != nil {
				return err
			}
			if indent {
				var buf bytes.Buffer
				if err := json.Indent(&buf, out, "", "  "); err != nil {
					return fmt.Errorf("indent: %w", err)
				}
				out = buf.Bytes()
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
	cmd.Flags().StringVar(&baseURL, "base-url", c.cfg.PublicBaseURL, "base for relative media URLs (env PUBLIC_BASE_URL)")
	cmd.Flags().StringVar(&section, "section", "", "print one section: "+strings.Join(service.Sections, ", "))
	cmd.Flags().BoolVar(&indent, "indent", false, "pretty-print the JSON")
	return cmd
}

func (c *cli) listCmd() *cobra.Command {
	var (
		dataset string
		bbox    string
		limit   int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List layer summaries",
		Long: `List prints the stored layers as JSON, optionally restricted to a dataset
or to datasets whose extent touches a bbox.

Example:
  tmsctl list --dataset sst
  tmsctl list --bbox 10,54,25,66,EPSG:4326`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := c.service()
			q := service.ListQuery{DatasetID: dataset, Limit: limit}
			if bbox != "" {
				bb, err := router.ParseBBOX(bbox)
				if err != nil {
					return fmt.Errorf("invalid bbox: %w", err)
				}
				q.BBox = &bb
				if err := svc.RebuildCoverage(cmd.Context()); err != nil {
					return err
				}
			}
			res, err := svc.List(cmd.Context(), q)
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(res, "", "  ")
			if err != nil {
				return fmt.Errorf("marshal layers: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
	cmd.Flags().StringVar(&dataset, "dataset", "", "only layers of this dataset")
	cmd.Flags().StringVar(&bbox, "bbox", "", "x1,y1,x2,y2,EPSG:4326")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of layers (0 for all)")
	return cmd
}
