package state

import (
	"context"
	"fmt"
	"math"

	"github.com/signalsfoundry/relay-network-simulator/core"
	"github.com/signalsfoundry/relay-network-simulator/internal/logging"
	"github.com/signalsfoundry/relay-network-simulator/model"
)

// ConstellationParams describes a new constellation. Zero values select the
// defaults: three satellites, rating 5 and the lowest orbit at which
// neighbouring satellites can still see each other.
type ConstellationParams struct {
	Name        string
	Size        int
	OrbitHeight float64
	Rating      int64
}

// CreateConstellation builds a ring of satellites around anchorID.
func (s *Scene) CreateConstellation(anchorID string, p ConstellationParams) (*model.Constellation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	anchor, err := s.bodyLocked(anchorID)
	if err != nil {
		return nil, err
	}

	if err := checkFinite(dimension{"orbit height", p.OrbitHeight}); err != nil {
		return nil, err
	}
	size := p.Size
	if size == 0 {
		size = DefaultConstellationSize
	}
	if size < model.MinConstellationSize {
		return nil, fmt.Errorf("%w: constellation size %d is below %d", ErrOutOfRange, size, model.MinConstellationSize)
	}
	rating := p.Rating
	if rating == 0 {
		rating = DefaultRating
	}
	if _, err := model.EncodeRating(rating); err != nil {
		return nil, err
	}

	low, high := model.ConstellationHeightBounds(anchor, size)
	if low > high {
		return nil, fmt.Errorf("%w: %d satellites do not fit around %q", ErrOutOfRange, size, anchor.Name)
	}

	c := &model.Constellation{
		ID:       s.newConstellationIDLocked(),
		Name:     p.Name,
		AnchorID: anchor.ID,
		Rating:   rating,
	}
	if c.Name == "" {
		c.Name = s.nextConstellationNameLocked()
	}
	if p.OrbitHeight > 0 {
		c.OrbitHeight = clamp(p.OrbitHeight, low, high)
	} else {
		c.OrbitHeight = low
	}
	c.Satellites = buildRing(anchor.ID, size, c.OrbitHeight)
	if err := s.placeSatellitesLocked(c, anchor); err != nil {
		return nil, err
	}
	if err := s.store.AddConstellation(c); err != nil {
		return nil, err
	}

	s.log.Debug(context.Background(), "constellation placed",
		logging.String("constellation", c.Name),
		logging.String("anchor", anchor.Name),
		logging.Int("size", size),
		logging.Float64("orbit_height", c.OrbitHeight),
	)
	return c, nil
}

// DeleteConstellation removes a constellation and its satellites.
func (s *Scene) DeleteConstellation(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.constellationLocked(id)
	if err != nil {
		return err
	}
	s.store.RemoveConstellations(c.ID)
	return nil
}

// ResizeConstellation rebuilds the ring with size evenly spaced satellites.
// The orbit height is clamped to the new minimum if needed.
func (s *Scene) ResizeConstellation(id string, size int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.constellationLocked(id)
	if err != nil {
		return err
	}
	if size < model.MinConstellationSize {
		return fmt.Errorf("%w: constellation size %d is below %d", ErrOutOfRange, size, model.MinConstellationSize)
	}
	anchor := s.store.GetBody(c.AnchorID)
	low, high := model.ConstellationHeightBounds(anchor, size)
	if low > high {
		return fmt.Errorf("%w: %d satellites do not fit around %q", ErrOutOfRange, size, anchor.Name)
	}

	height := clamp(c.OrbitHeight, low, high)
	sats := buildRing(anchor.ID, size, height)
	resized := *c
	resized.OrbitHeight = height
	resized.Satellites = sats
	if err := s.placeSatellitesLocked(&resized, anchor); err != nil {
		return err
	}
	c.OrbitHeight = height
	c.Satellites = sats

	s.log.Debug(context.Background(), "constellation resized",
		logging.String("constellation", c.Name),
		logging.Int("size", size),
	)
	// ring size is not a KB event
	s.updateMetricsLocked()
	return nil
}

// SetConstellationHeight moves every satellite to a new orbit height, clamped
// into the ring's allowed range.
func (s *Scene) SetConstellationHeight(id string, height float64) error {
	if err := checkFinite(dimension{"orbit height", height}); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.constellationLocked(id)
	if err != nil {
		return err
	}
	anchor := s.store.GetBody(c.AnchorID)
	low, high := model.ConstellationHeightBounds(anchor, c.Size())
	c.OrbitHeight = clamp(height, low, high)
	for _, sat := range c.Satellites {
		sat.OrbitHeight = c.OrbitHeight
	}
	return s.placeSatellitesLocked(c, anchor)
}

// ConstellationHeightBounds returns the allowed orbit height range for a
// constellation at its current size.
func (s *Scene) ConstellationHeightBounds(id string) (low, high float64, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, err := s.constellationLocked(id)
	if err != nil {
		return 0, 0, err
	}
	low, high = model.ConstellationHeightBounds(s.store.GetBody(c.AnchorID), c.Size())
	return low, high, nil
}

// SetConstellationRating sets the antenna rating from its encoded form. A
// rating that cannot be decoded, or whose value needs a tier above T, is
// rejected and the previous rating stays in place.
func (s *Scene) SetConstellationRating(id string, r model.Rating) error {
	v, err := model.DecodeRating(r)
	if err != nil {
		return err
	}
	return s.SetConstellationRatingValue(id, v)
}

// SetConstellationRatingValue sets the antenna rating from a raw value.
func (s *Scene) SetConstellationRatingValue(id string, value int64) error {
	if _, err := model.EncodeRating(value); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.constellationLocked(id)
	if err != nil {
		return err
	}
	c.Rating = value
	return nil
}

// ConstellationRating returns a constellation's rating in display form.
func (s *Scene) ConstellationRating(id string) (model.Rating, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, err := s.constellationLocked(id)
	if err != nil {
		return model.Rating{}, err
	}
	return model.EncodeRating(c.Rating)
}

// RenameConstellation changes a constellation's display name. Names stay
// unique.
func (s *Scene) RenameConstellation(id, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.constellationLocked(id)
	if err != nil {
		return err
	}
	if name == "" {
		return fmt.Errorf("%w: constellation name is empty", ErrInvalidName)
	}
	if other := s.store.FindConstellationByName(name); other != nil && other.ID != c.ID {
		return fmt.Errorf("%w: %q", ErrConstellationExists, name)
	}
	c.Name = name
	return nil
}

// buildRing lays out size satellites evenly around the anchor, first one at
// phase zero.
func buildRing(anchorID string, size int, height float64) []*model.Satellite {
	sats := make([]*model.Satellite, 0, size)
	for i := 0; i < size; i++ {
		sats = append(sats, &model.Satellite{
			Index:  i,
			Radius: model.SatelliteRadius,
			Orbit: model.Orbit{
				ParentID:    anchorID,
				OrbitHeight: height,
				Phase:       2 * math.Pi * float64(i) / float64(size),
			},
		})
	}
	return sats
}

func (s *Scene) refreshConstellationLocked(c *model.Constellation) error {
	return s.placeSatellitesLocked(c, s.store.GetBody(c.AnchorID))
}

func (s *Scene) placeSatellitesLocked(c *model.Constellation, anchor *model.Body) error {
	for _, sat := range c.Satellites {
		if err := core.RecomputeAngularRate(&sat.Orbit, anchor); err != nil {
			return fmt.Errorf("constellation %q: %w", c.Name, err)
		}
		if err := core.RecomputeCenter(&sat.Orbit, anchor); err != nil {
			return fmt.Errorf("constellation %q: %w", c.Name, err)
		}
	}
	return nil
}

func (s *Scene) nextConstellationNameLocked() string {
	_, n, _ := s.store.Counts()
	for {
		n++
		name := fmt.Sprintf("Constellation%d", n)
		if s.store.FindConstellationByName(name) == nil {
			return name
		}
	}
}
