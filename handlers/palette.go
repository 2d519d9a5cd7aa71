package handlers

import (
	"net/http"

	"github.com/camden-git/fieldsurvey/annotation"
	"github.com/camden-git/fieldsurvey/survey"
)

// EditorOptionsResponse lists the fixed choices offered by the form and the
// annotation editor.
type EditorOptionsResponse struct {
	Palette             []annotation.Color `json:"palette"`
	DefaultColor        annotation.Color   `json:"default_color"`
	Units               []annotation.Unit  `json:"units"`
	DefaultUnit         annotation.Unit    `json:"default_unit"`
	Tools               []annotation.Tool  `json:"tools"`
	DefaultCanvas       annotation.Size    `json:"default_canvas"`
	MaxImages           int                `json:"max_images"`
	Fuels               []survey.Product   `json:"fuels"`
	MaxProductsPerBlock int                `json:"max_products_per_block"`
}

func Options(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, EditorOptionsResponse{
		Palette:             annotation.Palette,
		DefaultColor:        annotation.DefaultColor,
		Units:               annotation.Units,
		DefaultUnit:         annotation.DefaultUnit,
		Tools:               []annotation.Tool{annotation.ToolLine, annotation.ToolText},
		DefaultCanvas:       annotation.DefaultCanvas,
		MaxImages:           survey.MaxImages,
		Fuels:               survey.Fuels,
		MaxProductsPerBlock: survey.MaxProductsPerBlock,
	})
}
