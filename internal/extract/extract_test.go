package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"resume-ats/internal/rules"
	"resume-ats/internal/shared/storage/object/local"
)

const documentXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>
<w:p><w:r><w:t>Skills</w:t></w:r></w:p>
<w:p><w:r><w:t>Go, </w:t></w:r><w:r><w:t>SQL</w:t></w:r></w:p>
<w:p><w:r><w:t>Experience</w:t></w:r></w:p>
<w:p><w:r><w:t>Built APIs</w:t><w:br/><w:t>Led migrations</w:t></w:r></w:p>
</w:body>
</w:document>`

const relsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"></Relationships>`

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func buildDocx(t *testing.T) []byte {
	return buildZip(t, map[string]string{
		"word/document.xml":            documentXML,
		"word/_rels/document.xml.rels": relsXML,
	})
}

func TestDetectFormat(t *testing.T) {
	docx := buildDocx(t)
	plainZip := buildZip(t, map[string]string{"notes.txt": "hello"})

	cases := []struct {
		name, mime, file string
		data             []byte
		want             Format
	}{
		{"pdf mime", "application/pdf", "", nil, FormatPDF},
		{"docx mime with params", mimeDOCX + "; charset=binary", "", nil, FormatDOCX},
		{"zip mime holding docx", "application/zip", "cv.docx", docx, FormatDOCX},
		{"zip mime plain archive", "application/zip", "notes.zip", plainZip, ""},
		{"extension", "", "resume.PDF", nil, FormatPDF},
		{"markdown", "", "cv.md", nil, FormatText},
		{"html sniffed", "", "", []byte("<!DOCTYPE html><html><body>x</body></html>"), FormatHTML},
		{"text sniffed", "", "", []byte("just some words"), FormatText},
		{"sniffed docx", "application/octet-stream", "", docx, FormatDOCX},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DetectFormat(tc.mime, tc.file, tc.data); got != tc.want {
				t.Fatalf("DetectFormat = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestFromBytesDocx(t *testing.T) {
	got, err := FromBytes(context.Background(), buildDocx(t), "application/zip", "cv.docx")
	if err != nil {
		t.Fatalf("extract docx: %v", err)
	}
	want := "Skills\nGo, SQL\nExperience\nBuilt APIs\nLed migrations"
	if got != want {
		t.Fatalf("docx text = %q, want %q", got, want)
	}
}

func TestFromBytesDocxMissingRels(t *testing.T) {
	data := buildZip(t, map[string]string{"word/document.xml": documentXML})
	if _, err := FromBytes(context.Background(), data, mimeDOCX, "cv.docx"); err == nil {
		t.Fatal("expected error for docx without relationships part")
	}
}

func TestFromBytesRejects(t *testing.T) {
	ctx := context.Background()
	plainZip := buildZip(t, map[string]string{"notes.txt": "hello"})

	if _, err := FromBytes(ctx, plainZip, "application/zip", "notes.zip"); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("zip err = %v, want ErrUnsupported", err)
	}
	if _, err := FromBytes(ctx, []byte("  \n\t "), "text/plain", "cv.txt"); !errors.Is(err, ErrEmpty) {
		t.Fatalf("blank err = %v, want ErrEmpty", err)
	}
	if _, err := FromBytes(ctx, []byte{0xff, 0xfe, 0x00}, "text/plain", "cv.txt"); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("binary text err = %v, want ErrUnsupported", err)
	}
	if _, err := FromBytes(ctx, make([]byte, MaxBytes+1), "text/plain", "cv.txt"); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("large err = %v, want ErrTooLarge", err)
	}
	if _, err := FromBytes(ctx, []byte("not a pdf"), "application/pdf", "cv.pdf"); err == nil {
		t.Fatal("expected error for corrupt pdf")
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := FromBytes(cancelled, []byte("text"), "text/plain", ""); !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled err = %v", err)
	}
}

func TestFromBytesHTML(t *testing.T) {
	page := `<html><head><title>Job</title><style>p{color:red}</style></head><body>
<h2>Requirements</h2>
<ul><li>Go</li><li>SQL</li></ul>
<p>Apply <b>now</b> at https://jobs.example.com</p>
<script>var tracking = 1;</script>
</body></html>`
	got, err := FromBytes(context.Background(), []byte(page), "text/html; charset=utf-8", "")
	if err != nil {
		t.Fatalf("extract html: %v", err)
	}
	for _, want := range []string{"Requirements", "- Go", "- SQL", "Apply now at"} {
		if !strings.Contains(got, want) {
			t.Errorf("html text %q missing %q", got, want)
		}
	}
	for _, banned := range []string{"tracking", "color:red", "Job", "https://"} {
		if strings.Contains(got, banned) {
			t.Errorf("html text %q contains %q", got, banned)
		}
	}
}

func TestFromStoreWritesExtractedCopy(t *testing.T) {
	ctx := context.Background()
	store := local.New(t.TempDir())
	obj, err := store.Put(ctx, "user:1", "cv.docx", bytes.NewReader(buildDocx(t)))
	if err != nil {
		t.Fatalf("put: %v", err)
	}

	text, err := FromStore(ctx, store, obj.Key, obj.ContentType, "cv.docx")
	if err != nil {
		t.Fatalf("from store: %v", err)
	}
	rc, err := store.Open(ctx, ExtractedKey(obj.Key))
	if err != nil {
		t.Fatalf("open extracted copy: %v", err)
	}
	defer rc.Close()
	saved, _ := io.ReadAll(rc)
	if string(saved) != text {
		t.Fatalf("saved copy = %q, want %q", saved, text)
	}

	if _, err := FromStore(ctx, store, "missing/key.pdf", "application/pdf", "x.pdf"); err == nil {
		t.Fatal("expected error for missing object")
	}
}

func TestCleanText(t *testing.T) {
	cases := []struct {
		name, in, want string
	}{
		{"line endings", "a\r\nb\rc", "a\nb\nc"},
		{"urls and emails", "Jane jane.doe@mail.com\nSite: https://jane.dev/cv and www.example.org", "Jane\nSite:  and"},
		{"ligatures", "ﬁnance ｐｙｔｈｏｎ", "finance python"},
		{"blank runs", "a\n\n\n\n\nb", "a\n\nb"},
		{"trailing space and controls", "a \u0007 \nb\u200b", "a\nb"},
		{"keeps column gaps", "Skills      Education", "Skills      Education"},
		{"tabs", "a\tb", "a    b"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CleanText(tc.in); got != tc.want {
				t.Fatalf("CleanText(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestValidateResume(t *testing.T) {
	r, err := rules.Default()
	if err != nil {
		t.Fatal(err)
	}

	resume := "Experience\nBuilt payment services in Go for a fintech startup between 2019 and 2023. " +
		"Led a team of four engineers and improved deployment reliability across regions.\n" +
		"Education\nBachelor of Engineering in Computer Science from a state university, graduated 2018 " +
		"with honours and a final project on distributed caching.\nSkills\nGo SQL Docker Kubernetes AWS Redis"
	v, err := ValidateResume(r, resume)
	if err != nil {
		t.Fatalf("valid resume rejected: %v (%+v)", err, v)
	}
	if len(v.Signals) < MinResumeSignals {
		t.Fatalf("signals = %v", v.Signals)
	}

	if _, err := ValidateResume(r, "Experience 2019"); !errors.Is(err, ErrNotResume) {
		t.Fatalf("short text err = %v, want ErrNotResume", err)
	}

	recipe := strings.Repeat("Mix the flour with sugar and butter then bake slowly until golden. ", 10)
	v, err = ValidateResume(r, recipe)
	if !errors.Is(err, ErrNotResume) {
		t.Fatalf("recipe err = %v, want ErrNotResume (%+v)", err, v)
	}
}
