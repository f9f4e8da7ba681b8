package webdav

import (
	"encoding/xml"
	"fmt"
	"io"
	"net/url"
	"strings"
)

// multistatus mirrors the WebDAV multistatus response document.
type multistatus struct {
	XMLName   xml.Name   `xml:"multistatus"`
	Responses []response `xml:"response"`
}

type response struct {
	Href     string   `xml:"href"`
	Propstat propstat `xml:"propstat"`
}

type propstat struct {
	Prop   prop   `xml:"prop"`
	Status string `xml:"status"`
}

type prop struct {
	DisplayName   string       `xml:"displayname"`
	ContentLength int64        `xml:"getcontentlength"`
	ResourceType  resourceType `xml:"resourcetype"`
}

type resourceType struct {
	Collection *struct{} `xml:"collection"`
}

// propfindBody returns the PROPFIND request document asking for the
// properties List needs.
func propfindBody() string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="utf-8" ?>` + "\n")
	b.WriteString(`<d:propfind xmlns:d="DAV:">` + "\n")
	b.WriteString("  <d:prop>\n")
	for _, p := range []string{"d:displayname", "d:getcontentlength", "d:resourcetype"} {
		fmt.Fprintf(&b, "    <%s/>\n", p)
	}
	b.WriteString("  </d:prop>\n")
	b.WriteString("</d:propfind>")
	return b.String()
}

// parseMultistatus decodes a multistatus XML document.
func parseMultistatus(body io.Reader) (*multistatus, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var ms multistatus
	if err := xml.Unmarshal(data, &ms); err != nil {
		return nil, fmt.Errorf("failed to parse XML response: %w", err)
	}

	return &ms, nil
}

// entries converts the responses to Entry values, skipping the listed
// directory itself.
func (ms *multistatus) entries(requestURL string) []Entry {
	base := strings.TrimSuffix(hrefPath(requestURL), "/")

	var result []Entry
	for _, resp := range ms.Responses {
		href := strings.TrimSuffix(hrefPath(resp.Href), "/")
		if href == base {
			continue
		}
		if resp.Propstat.Status != "" && !strings.Contains(resp.Propstat.Status, "200") {
			continue
		}

		name := resp.Propstat.Prop.DisplayName
		if name == "" {
			if idx := strings.LastIndex(href, "/"); idx >= 0 {
				name = href[idx+1:]
			} else {
				name = href
			}
		}

		result = append(result, Entry{
			Name:  name,
			Size:  resp.Propstat.Prop.ContentLength,
			IsDir: resp.Propstat.Prop.ResourceType.Collection != nil,
		})
	}

	return result
}

// hrefPath extracts the decoded path component of an href, which servers
// may return absolute or relative.
func hrefPath(href string) string {
	if u, err := url.Parse(href); err == nil {
		if u.Path != "" {
			return u.Path
		}
	}
	return href
}
