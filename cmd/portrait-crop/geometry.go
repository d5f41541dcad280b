package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/menta2k/portrait-crop/pkg/types"
)

// newGeometryCmd prints the crop the configured geometry gives for a face box
func newGeometryCmd(a *app) *cobra.Command {
	var box, size string
	var asJSON bool

	cmd := &cobra.Command{
		Use:     "geometry",
		Short:   "Print the portrait crop for a face box without touching any image",
		Example: "  portrait-crop geometry --box 100,100,180,220 --size 1000x1000",
		RunE: func(cmd *cobra.Command, args []string) error {
			face, err := parseBox(box)
			if err != nil {
				return err
			}
			w, h, err := parseSize(size)
			if err != nil {
				return err
			}

			rect := a.cfg.Crop.Compute(face, w, h)
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{
					"face":   face,
					"crop":   rect,
					"width":  rect.Width(),
					"height": rect.Height(),
					"inside": rect.Within(w, h),
				})
			}

			fmt.Fprintf(out, "face %s -> crop %s (%dx%d)\n", face, rect, rect.Width(), rect.Height())
			if !rect.Within(w, h) {
				fmt.Fprintln(out, warnStyle.Render("crop extends past the image and would fail"))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&box, "box", "", "face box as x0,y0,x1,y1")
	cmd.Flags().StringVar(&size, "size", "", "image size as WIDTHxHEIGHT")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	cmd.MarkFlagRequired("box")
	cmd.MarkFlagRequired("size")
	return cmd
}

func parseBox(s string) (types.BoundingBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return types.BoundingBox{}, fmt.Errorf("box %q: want x0,y0,x1,y1", s)
	}
	var v [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return types.BoundingBox{}, fmt.Errorf("box %q: %w", s, err)
		}
		v[i] = n
	}
	b := types.BoundingBox{X0: v[0], Y0: v[1], X1: v[2], Y1: v[3]}
	if !b.Valid() {
		return types.BoundingBox{}, fmt.Errorf("box %q has no area", s)
	}
	return b, nil
}

func parseSize(s string) (int, int, error) {
	ws, hs, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return 0, 0, fmt.Errorf("size %q: want WIDTHxHEIGHT", s)
	}
	w, err := strconv.Atoi(strings.TrimSpace(ws))
	if err != nil {
		return 0, 0, fmt.Errorf("size %q: %w", s, err)
	}
	h, err := strconv.Atoi(strings.TrimSpace(hs))
	if err != nil {
		return 0, 0, fmt.Errorf("size %q: %w", s, err)
	}
	if w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("size %q must be positive", s)
	}
	return w, h, nil
}
