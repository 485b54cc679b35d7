package models

// Requests for predictor HTTP endpoints. Defined in domain for consistency and reuse.

type PredictorsRequest struct {
	Start      string  `query:"start" json:"start" validate:"required"`
	End        string  `query:"end" json:"end" validate:"required"`
	Resolution string  `query:"resolution" json:"resolution" default:"15m"`
	Groups     string  `query:"groups" json:"groups"`
	City       string  `query:"city" json:"city"`
	Lat        float64 `query:"lat" json:"lat" validate:"omitempty,gte=-90,lte=90"`
	Lon        float64 `query:"lon" json:"lon" validate:"omitempty,gte=-180,lte=180"`
}

type GasPricesRequest struct {
	Start      string `query:"start" json:"start" validate:"required"`
	End        string `query:"end" json:"end" validate:"required"`
	Resolution string `query:"resolution" json:"resolution" default:"1h"`
}
