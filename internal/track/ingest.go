// Package track turns an uploaded GPX document into ordered point
// sequences: routing points from all track segments (file order) and
// boarding waypoints. The raw file is archived to a blob store when one
// is configured; archival is best-effort and never blocks ingestion.
package track

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/tkrajina/gpxgo/gpx"

	"transitlab-bot/internal/survey"
)

// Archiver stores the raw uploaded bytes. Failures are logged and
// swallowed.
type Archiver interface {
	Put(ctx context.Context, key string, data []byte) error
}

type Ingestor struct {
	archive Archiver // nil disables archival
}

func NewIngestor(archive Archiver) *Ingestor {
	return &Ingestor{archive: archive}
}

// Ingest parses data as GPX. On malformed input it returns a
// *survey.ParseError and the caller's session step stays unchanged so
// the user can re-upload.
func (in *Ingestor) Ingest(ctx context.Context, username, sessionID, name string, data []byte) (survey.TrackData, error) {
	if in.archive != nil {
		key := archiveKey(username, sessionID, time.Now())
		if err := in.archive.Put(ctx, key, data); err != nil {
			log.Printf("archive %s: %v", key, err)
		} else {
			log.Printf("archived raw track to %s", key)
		}
	}

	doc, err := gpx.ParseBytes(data)
	if err != nil {
		return survey.TrackData{}, &survey.ParseError{Name: name, Err: err}
	}

	var td survey.TrackData
	for _, trk := range doc.Tracks {
		for _, seg := range trk.Segments {
			for _, p := range seg.Points {
				td.Routing = append(td.Routing, survey.RoutePoint{
					Lat:  p.Latitude,
					Lon:  p.Longitude,
					Time: p.Timestamp,
					Kind: survey.KindRouting,
				})
			}
		}
	}
	for _, wp := range doc.Waypoints {
		td.Boarding = append(td.Boarding, survey.RoutePoint{
			Lat:  wp.Latitude,
			Lon:  wp.Longitude,
			Time: wp.Timestamp,
			Kind: survey.KindBoarding,
		})
	}
	return td, nil
}

func archiveKey(username, sessionID string, now time.Time) string {
	if username == "" {
		username = "anonymous"
	}
	return fmt.Sprintf("gpx-files/%s_%s_%s.gpx", username, sessionID, now.Format("20060102"))
}
