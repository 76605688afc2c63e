// Package segment holds the speech segmentation state machine and the
// duration filter applied to its output.
package segment

import (
	"encoding/json"
	"fmt"
	"time"
)

// Segment is a span of detected speech measured from the start of the stream.
type Segment struct {
	Start time.Duration
	End   time.Duration
}

// Duration returns End - Start.
func (s Segment) Duration() time.Duration { return s.End - s.Start }

// StartSeconds returns Start in seconds.
func (s Segment) StartSeconds() float64 { return s.Start.Seconds() }

// EndSeconds returns End in seconds.
func (s Segment) EndSeconds() float64 { return s.End.Seconds() }

func (s Segment) String() string {
	return fmt.Sprintf("%.2fs - %.2fs", s.StartSeconds(), s.EndSeconds())
}

type segmentJSON struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// MarshalJSON encodes the bounds as seconds.
func (s Segment) MarshalJSON() ([]byte, error) {
	return json.Marshal(segmentJSON{Start: s.StartSeconds(), End: s.EndSeconds()})
}

// UnmarshalJSON decodes bounds given in seconds.
func (s *Segment) UnmarshalJSON(data []byte) error {
	var v segmentJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	s.Start = seconds(v.Start)
	s.End = seconds(v.End)
	return nil
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}
