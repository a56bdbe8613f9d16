package gtfs

import "context"

// fakeStore backs resolver and matcher tests with in-memory tables. Lookups
// the tests never exercise panic through the embedded nil Store.
type fakeStore struct {
	Store

	agencies     map[string]*Agency
	trips        map[string]*Trip
	lastStop     map[string]string // trip id -> final stop code
	stopsByCode  map[string]*Stop
	stopsByName  map[string]*Stop
	stops        []*Stop
	translations map[string]map[string]string // source -> lang -> text
	cities       map[string]*City
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		agencies:     map[string]*Agency{},
		trips:        map[string]*Trip{},
		lastStop:     map[string]string{},
		stopsByCode:  map[string]*Stop{},
		stopsByName:  map[string]*Stop{},
		translations: map[string]map[string]string{},
		cities:       map[string]*City{},
	}
}

func (s *fakeStore) addStop(stop *Stop) {
	s.stops = append(s.stops, stop)
	if stop.Code != "" {
		s.stopsByCode[stop.Code] = stop
	}
	if stop.Name != "" {
		s.stopsByName[stop.Name] = stop
	}
}

func (s *fakeStore) AgencyByID(_ context.Context, agencyID string) (*Agency, error) {
	if a, ok := s.agencies[agencyID]; ok {
		return a, nil
	}
	return nil, ErrNotFound
}

func (s *fakeStore) TripByID(_ context.Context, tripID string) (*Trip, error) {
	if t, ok := s.trips[tripID]; ok {
		return t, nil
	}
	return nil, ErrNotFound
}

func (s *fakeStore) LastStopCodeForTrip(_ context.Context, tripID string) (string, error) {
	if code, ok := s.lastStop[tripID]; ok {
		return code, nil
	}
	return "", ErrNotFound
}

func (s *fakeStore) StopByCode(_ context.Context, stopCode string) (*Stop, error) {
	if stop, ok := s.stopsByCode[stopCode]; ok {
		return stop, nil
	}
	return nil, ErrNotFound
}

func (s *fakeStore) StopByName(_ context.Context, name string) (*Stop, error) {
	if stop, ok := s.stopsByName[name]; ok {
		return stop, nil
	}
	return nil, ErrNotFound
}

func (s *fakeStore) StopAtLocation(_ context.Context, lat, lon float64) (*Stop, error) {
	for _, stop := range s.stops {
		if stop.Lat == lat && stop.Lon == lon {
			return stop, nil
		}
	}
	return nil, ErrNotFound
}

func (s *fakeStore) StopsInBox(_ context.Context, north, south, east, west float64) ([]*Stop, error) {
	var in []*Stop
	for _, stop := range s.stops {
		if stop.Lat > south && stop.Lat < north && stop.Lon > west && stop.Lon < east {
			in = append(in, stop)
		}
	}
	return in, nil
}

func (s *fakeStore) Translations(_ context.Context, source string) (map[string]string, error) {
	if m, ok := s.translations[source]; ok {
		return m, nil
	}
	if m, ok := s.translations[NormalizeQuotes(source)]; ok {
		return m, nil
	}
	return map[string]string{}, nil
}

func (s *fakeStore) Translation(_ context.Context, source, lang string) (string, error) {
	m, _ := s.Translations(context.Background(), source)
	if t, ok := m[lang]; ok {
		return t, nil
	}
	return "", ErrNotFound
}

func (s *fakeStore) CityByName(_ context.Context, name string) (*City, error) {
	if c, ok := s.cities[name]; ok {
		return c, nil
	}
	return nil, ErrNotFound
}
