package media

type AssetType string

const (
	AssetTypeSurveyImage AssetType = "survey-images"
	AssetTypeRender      AssetType = "renders"
	AssetTypeThumbnail   AssetType = "thumbnails"
	AssetTypeArchive     AssetType = "archives"
)

// DefaultSubDirs maps every asset type to a directory of the same name.
func DefaultSubDirs() map[AssetType]string {
	return map[AssetType]string{
		AssetTypeSurveyImage: string(AssetTypeSurveyImage),
		AssetTypeRender:      string(AssetTypeRender),
		AssetTypeThumbnail:   string(AssetTypeThumbnail),
		AssetTypeArchive:     string(AssetTypeArchive),
	}
}

// Metadata struct
// Contains EXIF, GPS and dimension information
type Metadata struct {
	Width        *int     `json:"width,omitempty"`
	Height       *int     `json:"height,omitempty"`
	Aperture     *float64 `json:"aperture,omitempty"`
	ShutterSpeed *string  `json:"shutter_speed,omitempty"`
	ISO          *int     `json:"iso,omitempty"`
	FocalLength  *float64 `json:"focal_length,omitempty"`
	CameraMake   *string  `json:"camera_make,omitempty"`
	CameraModel  *string  `json:"camera_model,omitempty"`
	TakenAt      *int64   `json:"taken_at,omitempty"`
	Latitude     *float64 `json:"latitude,omitempty"`
	Longitude    *float64 `json:"longitude,omitempty"`
}
