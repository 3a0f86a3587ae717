package state

import (
	"context"
	"fmt"

	"github.com/signalsfoundry/relay-network-simulator/internal/logging"
	"github.com/signalsfoundry/relay-network-simulator/model"
)

// LoadScenario populates s from a scenario description: the root is
// reconfigured, then bodies and constellations are created in order. Parents
// and anchors are referenced by name and must already exist. Loading stops at
// the first error; entities created before it remain in the scene.
func LoadScenario(s *Scene, sc model.Scenario) error {
	if err := applyRoot(s, sc.Root); err != nil {
		return fmt.Errorf("root: %w", err)
	}

	for i, spec := range sc.Bodies {
		if err := loadBody(s, spec); err != nil {
			return fmt.Errorf("body %d (%q): %w", i, spec.Name, err)
		}
	}
	for i, spec := range sc.Constellations {
		if err := loadConstellation(s, spec); err != nil {
			return fmt.Errorf("constellation %d (%q): %w", i, spec.Name, err)
		}
	}

	bodies, constellations, satellites := s.store.Counts()
	s.log.Info(context.Background(), "scenario loaded",
		logging.Int("bodies", bodies),
		logging.Int("constellations", constellations),
		logging.Int("satellites", satellites),
	)
	return nil
}

func applyRoot(s *Scene, spec model.BodySpec) error {
	root := s.Root()
	if spec.Name != "" && spec.Name != root.Name {
		if err := s.RenameBody(root.ID, spec.Name); err != nil {
			return err
		}
	}
	if spec.SOIRadius != 0 {
		if err := s.SetBodySOIRadius(root.ID, spec.SOIRadius); err != nil {
			return err
		}
	}
	if spec.Radius != 0 {
		if err := s.SetBodyRadius(root.ID, spec.Radius); err != nil {
			return err
		}
	}
	if spec.MinParkingOrbit != 0 {
		if err := s.SetBodyMinParkingOrbit(root.ID, spec.MinParkingOrbit); err != nil {
			return err
		}
	}
	if spec.Color != "" {
		c, err := model.ParseHexColor(spec.Color)
		if err != nil {
			return err
		}
		if err := s.SetBodyColor(root.ID, c); err != nil {
			return err
		}
	}
	return nil
}

func loadBody(s *Scene, spec model.BodySpec) error {
	parentID := s.Root().ID
	if spec.Parent != "" {
		parent, err := s.BodyByName(spec.Parent)
		if err != nil {
			return err
		}
		parentID = parent.ID
	}

	p := BodyParams{
		Name:            spec.Name,
		Radius:          spec.Radius,
		SOIRadius:       spec.SOIRadius,
		MinParkingOrbit: spec.MinParkingOrbit,
		OrbitHeight:     spec.OrbitHeight,
	}
	if spec.Color != "" {
		c, err := model.ParseHexColor(spec.Color)
		if err != nil {
			return err
		}
		p.Color = &c
	}
	_, err := s.CreateBody(parentID, p)
	return err
}

func loadConstellation(s *Scene, spec model.ConstellationSpec) error {
	anchor, err := s.BodyByName(spec.Anchor)
	if err != nil {
		return err
	}

	p := ConstellationParams{
		Name:        spec.Name,
		Size:        spec.Size,
		OrbitHeight: spec.OrbitHeight,
	}
	if spec.Rating.Value != 0 {
		r, err := spec.Rating.Rating()
		if err != nil {
			return err
		}
		if p.Rating, err = model.DecodeRating(r); err != nil {
			return err
		}
	}
	_, err = s.CreateConstellation(anchor.ID, p)
	return err
}
