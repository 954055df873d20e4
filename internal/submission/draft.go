// Package submission is the three-step report wizard and its submit workflow.
//
// A Draft lives only as long as the process that edits it; nothing is saved.
package submission

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/pashurakshak/rakshak/internal/errs"
	"github.com/pashurakshak/rakshak/internal/geo"
	"github.com/pashurakshak/rakshak/internal/model"
)

// Limits applied before any network call.
const (
	MinDescriptionLen = 10
	MaxImages         = 5
	MaxImageSize      = 5 << 20
)

// Placeholder reporter used by the quick variant when no identity is supplied.
const (
	AnonymousName  = "Anonymous Reporter"
	AnonymousPhone = "0000000000"
)

var phonePattern = regexp.MustCompile(`^[6-9]\d{9}$`)

// ImageRef is a draft image: a local file still to upload, or an uploaded URL.
type ImageRef struct {
	LocalPath   string
	ContentType string
	Size        int64
	URL         string
}

// Staged reports whether the image has not been uploaded yet.
func (i ImageRef) Staged() bool { return i.URL == "" }

// Name is a short display name.
func (i ImageRef) Name() string {
	if i.LocalPath != "" {
		return i.LocalPath[strings.LastIndexAny(i.LocalPath, `/\`)+1:]
	}
	return i.URL
}

// Draft is the in-progress report.
type Draft struct {
	AnimalType        model.AnimalType
	Condition         model.Condition
	Description       string
	InjuryDescription string
	AdditionalNotes   string
	Images            []ImageRef
	// Position is nil until resolved.
	Position *model.Position
	Reporter model.Reporter
}

// Reset discards everything.
func (d *Draft) Reset() { *d = Draft{} }

// Clone returns a copy that shares no memory with d.
func (d *Draft) Clone() *Draft {
	c := *d
	c.Images = append([]ImageRef(nil), d.Images...)
	if d.Position != nil {
		p := *d.Position
		c.Position = &p
	}
	return &c
}

// KeepUploads copies URLs that from obtained for images still staged in d,
// matched by local path.
func (d *Draft) KeepUploads(from *Draft) {
	for i := range d.Images {
		if !d.Images[i].Staged() || d.Images[i].LocalPath == "" {
			continue
		}
		for _, im := range from.Images {
			if im.LocalPath == d.Images[i].LocalPath && !im.Staged() {
				d.Images[i].URL = im.URL
				break
			}
		}
	}
}

// SetPosition records a resolved position.
func (d *Draft) SetPosition(p model.Position) { d.Position = &p }

// AddImage stages a local file after checking count, size and content type.
func (d *Draft) AddImage(path string) error {
	if len(d.Images) >= MaxImages {
		return errs.Field("images", fmt.Sprintf("at most %d images", MaxImages))
	}
	st, err := os.Stat(path)
	if err != nil {
		return errs.Field("images", fmt.Sprintf("%s: cannot read file", path))
	}
	if st.IsDir() {
		return errs.Field("images", fmt.Sprintf("%s: is a directory", path))
	}
	if st.Size() == 0 {
		return errs.Field("images", fmt.Sprintf("%s: file is empty", path))
	}
	if st.Size() > MaxImageSize {
		return errs.Field("images", fmt.Sprintf("%s: larger than 5MB", path))
	}
	ctype, err := sniff(path)
	if err != nil {
		return errs.Field("images", fmt.Sprintf("%s: cannot read file", path))
	}
	if !strings.HasPrefix(ctype, "image/") {
		return errs.Field("images", fmt.Sprintf("%s: not an image (%s)", path, ctype))
	}
	for _, im := range d.Images {
		if im.LocalPath == path {
			return errs.Field("images", fmt.Sprintf("%s: already added", path))
		}
	}
	d.Images = append(d.Images, ImageRef{LocalPath: path, ContentType: ctype, Size: st.Size()})
	return nil
}

// AddImageURL records an image that is already hosted.
func (d *Draft) AddImageURL(u string) error {
	u = strings.TrimSpace(u)
	if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		return errs.Field("images", fmt.Sprintf("%q is not an http(s) url", u))
	}
	if len(d.Images) >= MaxImages {
		return errs.Field("images", fmt.Sprintf("at most %d images", MaxImages))
	}
	d.Images = append(d.Images, ImageRef{URL: u})
	return nil
}

// RemoveImage drops the image at index i.
func (d *Draft) RemoveImage(i int) {
	if i < 0 || i >= len(d.Images) {
		return
	}
	d.Images = append(d.Images[:i], d.Images[i+1:]...)
}

// URLs lists the uploaded image URLs in draft order.
func (d *Draft) URLs() []string {
	out := make([]string, 0, len(d.Images))
	for _, im := range d.Images {
		if im.URL != "" {
			out = append(out, im.URL)
		}
	}
	return out
}

func sniff(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	buf := make([]byte, 512)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF {
		return "", err
	}
	return http.DetectContentType(buf[:n]), nil
}

// --- step predicates ---

// CheckDetails is the step 1 predicate: animal type and condition chosen.
func (d *Draft) CheckDetails() error {
	if d.AnimalType == "" {
		return errs.Field("animalType", "choose the animal type")
	}
	if d.Condition == "" {
		return errs.Field("condition", "choose the condition")
	}
	return nil
}

// CheckDescription is the step 2 predicate: at least MinDescriptionLen characters after trimming.
func (d *Draft) CheckDescription() error {
	if utf8.RuneCountInString(strings.TrimSpace(d.Description)) < MinDescriptionLen {
		return errs.Field("description", fmt.Sprintf("at least %d characters", MinDescriptionLen))
	}
	return nil
}

// CheckEvidence is the step 3 predicate: at least one image and a resolved position.
func (d *Draft) CheckEvidence() error {
	if len(d.Images) == 0 {
		return errs.Field("images", "add at least one photo")
	}
	if d.Position == nil {
		return errs.Field("position", "set the location")
	}
	return geo.Validate(d.Position.Latitude, d.Position.Longitude)
}

// CheckReporter validates contact details of the full (non-quick) flow.
func (d *Draft) CheckReporter() error {
	if strings.TrimSpace(d.Reporter.Name) == "" {
		return errs.Field("reporterName", "is required")
	}
	if !phonePattern.MatchString(strings.TrimSpace(d.Reporter.Phone)) {
		return errs.Field("reporterPhone", "enter a valid 10-digit phone number")
	}
	return nil
}

// FillAnonymous sets the placeholder reporter when none was given.
func (d *Draft) FillAnonymous() {
	if strings.TrimSpace(d.Reporter.Name) == "" {
		d.Reporter.Name = AnonymousName
	}
	if strings.TrimSpace(d.Reporter.Phone) == "" {
		d.Reporter.Phone = AnonymousPhone
	}
}
