package catalog

import (
	"errors"
	"sort"
	"time"
)

// DateLayout is the format of the date keys used to group media files
const DateLayout = "2006-01-02"

// TimeLayout is the format used to display the time of a single file
const TimeLayout = "15:04:05"

var ErrCameraNotFound = errors.New("camera not found")

type MediaKind string

const (
	KindPhotos MediaKind = "photos"
	KindVideos MediaKind = "videos"
)

// ParseMediaKind converts a route segment into a MediaKind
func ParseMediaKind(s string) (MediaKind, bool) {
	switch MediaKind(s) {
	case KindPhotos:
		return KindPhotos, true
	case KindVideos:
		return KindVideos, true
	}
	return "", false
}

// Other returns the opposite media kind (photos <-> videos)
func (k MediaKind) Other() MediaKind {
	if k == KindPhotos {
		return KindVideos
	}
	return KindPhotos
}

// Singular returns the kind name for a single file, e.g. "photo"
func (k MediaKind) Singular() string {
	if k == KindPhotos {
		return "photo"
	}
	return "video"
}

// MediaFile is a single recording of a camera
type MediaFile struct {
	Timestamp int64  `json:"timestamp"` // modification time, unix seconds
	Path      string `json:"path"`      // relative to the camera directory, slash separated
}

type DateCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type Camera struct {
	Name   string     `json:"name"`
	Photos Collection `json:"photos"`
	Videos Collection `json:"videos"`
}

// Collection returns the media collection of the given kind
func (c *Camera) Collection(kind MediaKind) *Collection {
	if kind == KindPhotos {
		return &c.Photos
	}
	return &c.Videos
}

// DateCounts returns the number of photos and videos per date, ascending by date
func (c *Camera) DateCounts() []DateCount {
	counts := make(map[string]int)
	for _, coll := range []*Collection{&c.Videos, &c.Photos} {
		for date, files := range coll.ByDate {
			counts[date] += len(files)
		}
	}
	return sortedCounts(counts)
}

type Catalog struct {
	Cameras   map[string]*Camera `json:"cameras"`
	ScannedAt time.Time          `json:"scannedAt"`
}

// CameraNames returns all camera names in ascending order
func (c *Catalog) CameraNames() []string {
	names := make([]string, 0, len(c.Cameras))
	for name := range c.Cameras {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Camera looks up a camera by name
func (c *Catalog) Camera(name string) (*Camera, error) {
	camera, ok := c.Cameras[name]
	if !ok {
		return nil, ErrCameraNotFound
	}
	return camera, nil
}

func sortedCounts(counts map[string]int) []DateCount {
	result := make([]DateCount, 0, len(counts))
	for date, count := range counts {
		result = append(result, DateCount{Date: date, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Date < result[j].Date
	})
	return result
}
