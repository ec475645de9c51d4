package catalog

import (
	"sort"
	"time"
)

// Collection holds the files of one media kind of a camera.
// Files and the per-date lists are sorted by timestamp, then path.
type Collection struct {
	Files  []MediaFile            `json:"files"`
	Dates  []string               `json:"dates"`
	ByDate map[string][]MediaFile `json:"byDate"`
}

// Position addresses a file inside a collection by date and index within that date
type Position struct {
	Date  string
	Index int
}

func newCollection(files []MediaFile, loc *time.Location) Collection {
	sort.Slice(files, func(i, j int) bool {
		return lessFile(files[i], files[j])
	})

	byDate := make(map[string][]MediaFile)
	for _, file := range files {
		date := FormatDate(file.Timestamp, loc)
		byDate[date] = append(byDate[date], file)
	}

	dates := make([]string, 0, len(byDate))
	for date := range byDate {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	return Collection{
		Files:  files,
		Dates:  dates,
		ByDate: byDate,
	}
}

func lessFile(a, b MediaFile) bool {
	if a.Timestamp != b.Timestamp {
		return a.Timestamp < b.Timestamp
	}
	return a.Path < b.Path
}

// Len returns the total number of files
func (c *Collection) Len() int {
	return len(c.Files)
}

// FilesOn returns the files recorded on the given date (nil if none)
func (c *Collection) FilesOn(date string) []MediaFile {
	return c.ByDate[date]
}

// Lookup returns the file at the given position
func (c *Collection) Lookup(pos Position) (MediaFile, bool) {
	files := c.ByDate[pos.Date]
	if pos.Index < 0 || pos.Index >= len(files) {
		return MediaFile{}, false
	}
	return files[pos.Index], true
}

// Previous returns the position before pos, moving to the last file of the
// previous date when pos is the first file of its date.
func (c *Collection) Previous(pos Position) (Position, bool) {
	if _, ok := c.Lookup(pos); !ok {
		return Position{}, false
	}
	if pos.Index > 0 {
		return Position{Date: pos.Date, Index: pos.Index - 1}, true
	}
	dateIdx := c.dateIndex(pos.Date)
	if dateIdx <= 0 {
		return Position{}, false
	}
	prevDate := c.Dates[dateIdx-1]
	return Position{Date: prevDate, Index: len(c.ByDate[prevDate]) - 1}, true
}

// Next returns the position after pos, moving to the first file of the
// next date when pos is the last file of its date.
func (c *Collection) Next(pos Position) (Position, bool) {
	if _, ok := c.Lookup(pos); !ok {
		return Position{}, false
	}
	if pos.Index < len(c.ByDate[pos.Date])-1 {
		return Position{Date: pos.Date, Index: pos.Index + 1}, true
	}
	dateIdx := c.dateIndex(pos.Date)
	if dateIdx < 0 || dateIdx >= len(c.Dates)-1 {
		return Position{}, false
	}
	return Position{Date: c.Dates[dateIdx+1], Index: 0}, true
}

// Nearest returns the position of the file closest in time to ts.
// Ties resolve to the earlier file.
func (c *Collection) Nearest(ts int64, loc *time.Location) (Position, bool) {
	if len(c.Files) == 0 {
		return Position{}, false
	}
	best := c.Files[0]
	bestDiff := absDiff(best.Timestamp, ts)
	for _, file := range c.Files[1:] {
		if diff := absDiff(file.Timestamp, ts); diff < bestDiff {
			best = file
			bestDiff = diff
		}
	}

	date := FormatDate(best.Timestamp, loc)
	for i, file := range c.ByDate[date] {
		if file == best {
			return Position{Date: date, Index: i}, true
		}
	}
	return Position{}, false
}

// DateCounts returns the number of files per date, ascending by date
func (c *Collection) DateCounts() []DateCount {
	result := make([]DateCount, 0, len(c.Dates))
	for _, date := range c.Dates {
		result = append(result, DateCount{Date: date, Count: len(c.ByDate[date])})
	}
	return result
}

func (c *Collection) dateIndex(date string) int {
	idx := sort.SearchStrings(c.Dates, date)
	if idx < len(c.Dates) && c.Dates[idx] == date {
		return idx
	}
	return -1
}

func absDiff(a, b int64) int64 {
	if a > b {
		return a - b
	}
	return b - a
}

// FormatDate returns the calendar date of ts in loc
func FormatDate(ts int64, loc *time.Location) string {
	return time.Unix(ts, 0).In(loc).Format(DateLayout)
}

// FormatTime returns the wall clock time of ts in loc
func FormatTime(ts int64, loc *time.Location) string {
	return time.Unix(ts, 0).In(loc).Format(TimeLayout)
}
