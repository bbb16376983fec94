package components

import (
	"github.com/alucardeht/amgp/internal/registry"
	"github.com/alucardeht/amgp/internal/temporal"
)

func Map() *Static {
	return NewStatic("AMGP_MAP", "00300200", nil)
}

// Util has no declared identifier of its own. 00100100 gives it utility
// priority 100, ahead of Map at 200, the order the renderer loads them in.
func Util() *Static {
	return NewStatic("AMGP_UTIL", "00100100", nil)
}

func Menu() *Static {
	return NewStatic("AMGP_MENU", "00220100", nil)
}

var distances = []string{
	"1 km", "5 km", "10 km", "15 km", "20 km", "25 km", "50 km", "75 km",
	"100 km", "250 km", "500 km", "750 km", "1000 km",
}

func Obs() *Static {
	return NewStatic("AMGP_OBS", "00311000", map[string]registry.Capability{
		"surface_station_observations": {
			Description: "Surface observed conditions.",
			Options: map[string][]string{
				"components": {
					"observed_temperature", "observed_dewpoint", "observed_weather",
					"observed_cloud_cover", "observed_winds", "observed_pressure", "station_names",
				},
				"min_distance_between_points": distances,
			},
			Resolution: temporal.Single(temporal.Tag1h),
		},
		"upper_air_station_observations": {
			Description: "Upper-air observed conditions. Limited to the United States.",
			Options: map[string][]string{
				"components": {
					"observed_temperature", "observed_dewpoint_depression", "observed_winds",
					"observed_heights", "station_names",
				},
				"level": {"925 hPa", "850 hPa", "700 hPa", "500 hPa", "300 hPa", "200 hPa"},
			},
			Resolution: temporal.Single(temporal.Tag12h),
		},
	})
}

func ModelFill() *Static {
	return NewStatic("AMGP_MODEL_FILL", "00510400", map[string]registry.Capability{
		"filled_gfs_contours": {
			Description: "Gridded model outputs from the operational GFS model, plotted as filled contours.",
			Options: map[string][]string{
				"components": {
					"temperature", "dewpoint", "dewpoint_depression", "vertical", "wind_magnitude",
					"zonal_winds", "meridional_winds", "sbcape", "sbcin", "mucape", "mucin",
					"mlcape", "mlcin", "potential_temperature", "equivalent_potential_temperature",
				},
				"level":         {"surface", "1000 hPa", "925 hPa", "850 hPa", "700 hPa", "500 hPa", "300 hPa", "200 hPa"},
				"resolution":    {"one_deg", "half-deg", "quarter-deg"},
				"forecast_hour": {},
			},
			Resolution: temporal.Single(temporal.Tag6h),
			Fill:       true,
		},
	})
}
