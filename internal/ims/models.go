package ims

import (
	"encoding/json"
	"fmt"
)

// Location is a station's coordinates.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Monitor is one measured quantity of a station and the channel serving it.
type Monitor struct {
	ChannelID   int     `json:"channelId"`
	Name        string  `json:"name"`
	Alias       *string `json:"alias"`
	Active      bool    `json:"active"`
	TypeID      int     `json:"typeId"`
	PollutantID int     `json:"pollutantId"`
	Units       string  `json:"units"`
	Description *string `json:"description"`
}

// Station is an entry of the Envista station list.
type Station struct {
	StationID   int       `json:"stationId"`
	Name        string    `json:"name"`
	ShortName   string    `json:"shortName"`
	StationsTag string    `json:"stationsTag"`
	Location    Location  `json:"location"`
	Timebase    int       `json:"timebase"`
	Active      bool      `json:"active"`
	Owner       string    `json:"owner"`
	RegionID    int       `json:"regionId"`
	Monitors    []Monitor `json:"monitors"`
}

// HasMonitor reports whether the station exposes the named monitor.
func (s Station) HasMonitor(name string) bool {
	_, err := s.Channel(name)
	return err == nil
}

// Channel returns the channel id serving the named monitor.
func (s Station) Channel(monitor string) (int, error) {
	for _, m := range s.Monitors {
		if m.Name == monitor {
			return m.ChannelID, nil
		}
	}
	return 0, fmt.Errorf("%w: station %s has no %s monitor", ErrUnknownMonitor, s.Name, monitor)
}

// Region is an entry of the Envista region list.
type Region struct {
	RegionID int             `json:"regionId"`
	Name     string          `json:"name"`
	Stations json.RawMessage `json:"stations"`
}

// ChannelValue is a single channel's value inside a reading.
type ChannelValue struct {
	ID          int     `json:"id"`
	Name        string  `json:"name"`
	Alias       *string `json:"alias"`
	Value       float64 `json:"value"`
	Status      int     `json:"status"`
	Valid       bool    `json:"valid"`
	Description *string `json:"description"`
}

// OK reports whether the value passed the API's quality checks.
func (c ChannelValue) OK() bool {
	return c.Valid && c.Status == 1
}

// Reading is one timestamped observation. Datetime is local time with offset,
// e.g. "2023-10-01T00:10:00+03:00".
type Reading struct {
	Datetime string         `json:"datetime"`
	Channels []ChannelValue `json:"channels"`
}

// First returns the first channel value of the reading.
func (r Reading) First() (ChannelValue, bool) {
	if len(r.Channels) == 0 {
		return ChannelValue{}, false
	}
	return r.Channels[0], true
}

type dataResponse struct {
	StationID int       `json:"stationId"`
	Data      []Reading `json:"data"`
}
