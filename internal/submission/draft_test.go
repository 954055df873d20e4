package submission

import (
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/pashurakshak/rakshak/internal/errs"
	"github.com/pashurakshak/rakshak/internal/model"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, data, 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func fieldOf(t *testing.T, err error) string {
	t.Helper()
	var fe *errs.FieldError
	if !errors.As(err, &fe) {
		t.Fatalf("want FieldError, got %v", err)
	}
	return fe.Field
}

func TestDraft_AddImage(t *testing.T) {
	t.Parallel()

	var d Draft
	png := writeFile(t, "dog.png", pngMagic)
	if err := d.AddImage(png); err != nil {
		t.Fatalf("AddImage: %v", err)
	}
	if d.Images[0].ContentType != "image/png" || !d.Images[0].Staged() || d.Images[0].Name() != "dog.png" {
		t.Fatalf("unexpected ref %+v", d.Images[0])
	}
	if err := d.AddImage(png); fieldOf(t, err) != "images" {
		t.Fatalf("duplicate must be rejected")
	}

	cases := map[string]string{
		"text":  writeFile(t, "notes.txt", []byte("just some words here")),
		"empty": writeFile(t, "empty.png", nil),
		"big":   writeFile(t, "big.png", append(append([]byte{}, pngMagic...), bytes.Repeat([]byte{0}, MaxImageSize)...)),
		"gone":  filepath.Join(t.TempDir(), "missing.png"),
		"dir":   t.TempDir(),
	}
	for name, path := range cases {
		if err := d.AddImage(path); !errors.Is(err, errs.ErrValidation) {
			t.Fatalf("%s: want validation error, got %v", name, err)
		}
	}
	if len(d.Images) != 1 {
		t.Fatalf("rejected files must not be staged, have %d", len(d.Images))
	}
}

func TestDraft_MaxImages(t *testing.T) {
	t.Parallel()

	var d Draft
	for i := 0; i < MaxImages; i++ {
		if err := d.AddImageURL("https://img.example/" + string(rune('a'+i)) + ".jpg"); err != nil {
			t.Fatalf("AddImageURL #%d: %v", i, err)
		}
	}
	if err := d.AddImage(writeFile(t, "x.png", pngMagic)); fieldOf(t, err) != "images" {
		t.Fatalf("sixth image must be rejected")
	}
	if err := d.AddImageURL("ftp://x"); fieldOf(t, err) != "images" {
		t.Fatalf("non-http url must be rejected")
	}
	d.RemoveImage(0)
	d.RemoveImage(42)
	if len(d.Images) != MaxImages-1 {
		t.Fatalf("RemoveImage: have %d", len(d.Images))
	}
}

func TestDraft_Predicates(t *testing.T) {
	t.Parallel()

	var d Draft
	if fieldOf(t, d.CheckDetails()) != "animalType" {
		t.Fatalf("animal type first")
	}
	d.AnimalType = model.AnimalDog
	if fieldOf(t, d.CheckDetails()) != "condition" {
		t.Fatalf("condition second")
	}
	d.Condition = model.ConditionInjured
	if err := d.CheckDetails(); err != nil {
		t.Fatalf("details complete: %v", err)
	}

	d.Description = "  ninechars  "
	if d.CheckDescription() == nil {
		t.Fatalf("9 characters must fail")
	}
	d.Description = "कुत्ता घायल है!" // 15 runes, many more bytes
	if err := d.CheckDescription(); err != nil {
		t.Fatalf("description: %v", err)
	}

	if fieldOf(t, d.CheckEvidence()) != "images" {
		t.Fatalf("images required")
	}
	_ = d.AddImageURL("https://img.example/a.jpg")
	if fieldOf(t, d.CheckEvidence()) != "position" {
		t.Fatalf("position required")
	}
	d.SetPosition(model.Position{})
	if err := d.CheckEvidence(); err != nil {
		t.Fatalf("a resolved position at 0,0 still counts: %v", err)
	}
	d.SetPosition(model.Position{Latitude: math.NaN(), Longitude: 73.85})
	if fieldOf(t, d.CheckEvidence()) != "latitude" {
		t.Fatalf("NaN is not a position")
	}
}

// Leading and trailing blanks do not count towards the minimum length.
func TestDraft_DescriptionCountsTrimmedRunes(t *testing.T) {
	t.Parallel()

	for desc, ok := range map[string]bool{
		"abcdefghij":     true,
		"  abcdefghij  ": true,
		"abc de fghi":    true,
		"  abcdefgh":     false,
		"abcdefgh\n\t":   false,
		"          ":     false,
	} {
		d := Draft{Description: desc}
		if err := d.CheckDescription(); (err == nil) != ok {
			t.Fatalf("%q: got %v, want complete=%v", desc, err, ok)
		}
	}
}

func TestDraft_CloneAndKeepUploads(t *testing.T) {
	t.Parallel()

	var d Draft
	a := writeFile(t, "a.png", pngMagic)
	b := writeFile(t, "b.png", pngMagic)
	if err := d.AddImage(a); err != nil {
		t.Fatal(err)
	}
	if err := d.AddImage(b); err != nil {
		t.Fatal(err)
	}
	d.SetPosition(model.Position{Latitude: 18.52, Longitude: 73.85})

	c := d.Clone()
	c.Images[0].URL = "https://img.example/a.png"
	c.Position.Latitude = 0
	if !d.Images[0].Staged() || d.Position.Latitude != 18.52 {
		t.Fatalf("clone shares memory with the original")
	}

	c.Reset()
	c.Images = []ImageRef{{LocalPath: a, URL: "https://img.example/a.png"}, {LocalPath: b}}
	d.KeepUploads(c)
	if d.Images[0].URL != "https://img.example/a.png" || !d.Images[1].Staged() {
		t.Fatalf("uploads not kept: %+v", d.Images)
	}
}

func TestDraft_Reporter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		rep   model.Reporter
		field string
	}{
		{"ok", model.Reporter{Name: "Asha", Phone: "9876543210"}, ""},
		{"no name", model.Reporter{Phone: "9876543210"}, "reporterName"},
		{"short phone", model.Reporter{Name: "Asha", Phone: "98765"}, "reporterPhone"},
		{"bad prefix", model.Reporter{Name: "Asha", Phone: "1234567890"}, "reporterPhone"},
		{"placeholder", model.Reporter{Name: AnonymousName, Phone: AnonymousPhone}, "reporterPhone"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			d := Draft{Reporter: tt.rep}
			err := d.CheckReporter()
			if tt.field == "" {
				if err != nil {
					t.Fatalf("unexpected: %v", err)
				}
				return
			}
			if got := fieldOf(t, err); got != tt.field {
				t.Fatalf("field: want %s, got %s", tt.field, got)
			}
		})
	}
}

func TestDraft_FillAnonymousKeepsGiven(t *testing.T) {
	t.Parallel()

	d := Draft{Reporter: model.Reporter{Name: "Asha"}}
	d.FillAnonymous()
	if d.Reporter.Name != "Asha" || d.Reporter.Phone != AnonymousPhone {
		t.Fatalf("unexpected reporter %+v", d.Reporter)
	}
}
