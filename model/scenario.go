package model

// BodySpec describes a body to create when a scenario is loaded. Zero numeric
// fields fall back to the scene defaults.
type BodySpec struct {
	Name            string  `mapstructure:"name"`
	Parent          string  `mapstructure:"parent"`
	Radius          float64 `mapstructure:"radius"`
	SOIRadius       float64 `mapstructure:"soi_radius"`
	MinParkingOrbit float64 `mapstructure:"min_parking_orbit"`
	OrbitHeight     float64 `mapstructure:"orbit_height"`
	Color           string  `mapstructure:"color"`
}

// RatingSpec is the configuration form of a Rating.
type RatingSpec struct {
	Value     int64  `mapstructure:"value"`
	Magnitude string `mapstructure:"magnitude"`
}

// ConstellationSpec describes a constellation to create when a scenario is
// loaded.
type ConstellationSpec struct {
	Name        string     `mapstructure:"name"`
	Anchor      string     `mapstructure:"anchor"`
	Size        int        `mapstructure:"size"`
	OrbitHeight float64    `mapstructure:"orbit_height"`
	Rating      RatingSpec `mapstructure:"rating"`
}

// RouteSpec names the pair of constellations to route between.
type RouteSpec struct {
	Start string `mapstructure:"start"`
	Goal  string `mapstructure:"goal"`
}

// Scenario is an initial scene description. Bodies are created in order, so a
// body's parent must appear before it.
type Scenario struct {
	Root           BodySpec            `mapstructure:"root"`
	Bodies         []BodySpec          `mapstructure:"bodies"`
	Constellations []ConstellationSpec `mapstructure:"constellations"`
	Route          RouteSpec           `mapstructure:"route"`
}

// Rating converts the configured value into a Rating, validating the suffix.
func (r RatingSpec) Rating() (Rating, error) {
	mag := MagnitudeK
	if r.Magnitude != "" {
		m, err := ParseMagnitude(r.Magnitude)
		if err != nil {
			return Rating{}, err
		}
		mag = m
	}
	return Rating{Value: r.Value, Magnitude: mag}, nil
}
