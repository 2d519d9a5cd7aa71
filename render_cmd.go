package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/camden-git/fieldsurvey/annotation"
	"github.com/camden-git/fieldsurvey/media"
	"github.com/disintegration/imaging"
	"github.com/spf13/cobra"
)

// renderCmd draws an annotated image offline, without a database.
func renderCmd() *cobra.Command {
	var (
		annotationsPath string
		outPath         string
	)
	cmd := &cobra.Command{
		Use:   "render <photo>",
		Short: "Render an annotated photo to JPEG",
		Long: `Render draws the annotations of an annotated image record (JSON, as
stored in a survey document) over a photo and writes the result as JPEG.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return renderFile(args[0], annotationsPath, outPath)
		},
	}
	cmd.Flags().StringVarP(&annotationsPath, "annotations", "a", "", "Annotated image JSON file")
	cmd.Flags().StringVarP(&outPath, "out", "o", "render.jpg", "Output file")
	_ = cmd.MarkFlagRequired("annotations")
	return cmd
}

func renderFile(photoPath, annotationsPath, outPath string) error {
	data, err := os.ReadFile(annotationsPath)
	if err != nil {
		return err
	}
	var img annotation.AnnotatedImage
	if err := json.Unmarshal(data, &img); err != nil {
		return fmt.Errorf("decode %s: %w", annotationsPath, err)
	}
	for i := range img.Annotations {
		img.Annotations[i] = img.Annotations[i].Normalize()
		if err := img.Annotations[i].Validate(); err != nil {
			return fmt.Errorf("annotation %d: %w", i, err)
		}
	}

	base, err := imaging.Open(photoPath, imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("open %s: %w", photoPath, err)
	}
	out := media.NewProcessor(nil).Render(base, img)
	if err := imaging.Save(out, outPath, imaging.JPEGQuality(media.RenderJpegQuality)); err != nil {
		return err
	}
	log.Printf("Rendered %d annotations to %s (%dx%d)", len(img.Annotations), outPath, out.Bounds().Dx(), out.Bounds().Dy())
	return nil
}
