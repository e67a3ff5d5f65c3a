package model

import "strings"

// DocType classifies a remote document by its extension or media type.
// The numeric values are part of the snapshot format and must not be reordered.
type DocType int

const (
	DocDir DocType = iota
	DocPdf
	DocDocx
	DocZip
	DocMp4
	DocTxt
	DocPy
	DocDoc
	DocMp3
	DocJpg
	DocJpeg
	DocPng
	DocUnknown
)

var docTypeNames = map[DocType]string{
	DocDir:     "Directory",
	DocPdf:     "PDF",
	DocDocx:    "Docx",
	DocZip:     "ZIP",
	DocMp4:     "MP4",
	DocTxt:     "Txt",
	DocPy:      "Py",
	DocDoc:     "Doc",
	DocMp3:     "MP3",
	DocJpg:     "JPG",
	DocJpeg:    "Jpeg",
	DocPng:     "PNG",
	DocUnknown: "Unknown Document",
}

var docTypeTokens = map[string]DocType{
	".dir": DocDir,
	"pdf":  DocPdf,
	"docx": DocDocx,
	"zip":  DocZip,
	"mp4":  DocMp4,
	"txt":  DocTxt,
	"py":   DocPy,
	"doc":  DocDoc,
	"mp3":  DocMp3,
	"jpg":  DocJpg,
	"jpeg": DocJpeg,
	"png":  DocPng,
}

// ParseDocType maps the type token reported by the remote listing
// (e.g. "pdf", ".dir") to a DocType. Unrecognized tokens yield DocUnknown.
func ParseDocType(token string) DocType {
	if t, ok := docTypeTokens[strings.ToLower(strings.TrimSpace(token))]; ok {
		return t
	}
	return DocUnknown
}

// Extension returns the file extension (without the dot) used when writing
// a document of this type to disk. Directories and unknown documents have none.
func (t DocType) Extension() string {
	switch t {
	case DocDir, DocUnknown:
		return ""
	}
	for token, dt := range docTypeTokens {
		if dt == t {
			return token
		}
	}
	return ""
}

func (t DocType) String() string {
	if name, ok := docTypeNames[t]; ok {
		return name
	}
	return docTypeNames[DocUnknown]
}
