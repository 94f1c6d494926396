package genai

import (
	"encoding/base64"
	"net/url"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Material is what a study set is generated from: an uploaded file or a link.
// Exactly one of Data or URL is set.
type Material struct {
	Name string
	Data []byte
	URL  string
}

// FileMaterial wraps an uploaded file.
func FileMaterial(name string, data []byte) Material {
	return Material{Name: name, Data: data}
}

// LinkMaterial wraps a link to the material, e.g. a video page.
func LinkMaterial(rawURL string) (Material, error) {
	u, err := url.ParseRequestURI(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Material{}, newError(KindUnsupported, "material link must be an http(s) URL", err)
	}
	return Material{URL: u.String()}, nil
}

type materialClass int

const (
	classUnknown materialClass = iota
	classText
	classImage
	classMedia
	classLink
)

// classify sniffs the content type of the material.
func (m Material) classify() (materialClass, *mimetype.MIME) {
	if m.URL != "" {
		return classLink, nil
	}
	mt := mimetype.Detect(m.Data)
	for p := mt; p != nil; p = p.Parent() {
		if p.Is("text/plain") {
			return classText, mt
		}
	}
	switch {
	case strings.HasPrefix(mt.String(), "image/"):
		return classImage, mt
	case strings.HasPrefix(mt.String(), "audio/"), strings.HasPrefix(mt.String(), "video/"):
		return classMedia, mt
	}
	return classUnknown, mt
}

func dataURL(mt *mimetype.MIME, data []byte) string {
	mediaType, _, _ := strings.Cut(mt.String(), ";")
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
