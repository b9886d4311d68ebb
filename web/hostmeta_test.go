package web

import (
	"encoding/json"
	"encoding/xml"
	"strings"
	"testing"
)

func TestWantsHostMetaJSON(t *testing.T) {
	cases := []struct {
		accept string
		expect bool
	}{
		{"", false},
		{"application/xrd+xml", false},
		{"application/json", true},
		{"application/jrd+json", true},
		{"APPLICATION/JSON", true},
		{"text/html,application/json;q=0.9", true},
		{"text/html", false},
	}
	for _, tc := range cases {
		if got := WantsHostMetaJSON(tc.accept); got != tc.expect {
			t.Errorf("Accept %q: expected %v, got %v", tc.accept, tc.expect, got)
		}
	}
}

func TestGetHostMetaXRD(t *testing.T) {
	conf := testConf()
	body := GetHostMetaXRD(conf)

	var parsed struct {
		XMLName xml.Name `xml:"XRD"`
		Link    struct {
			Rel      string `xml:"rel,attr"`
			Template string `xml:"template,attr"`
		} `xml:"Link"`
	}
	if err := xml.Unmarshal([]byte(body), &parsed); err != nil {
		t.Fatalf("XRD is not valid XML: %v", err)
	}
	if parsed.Link.Rel != "lrdd" {
		t.Errorf("Expected lrdd link, got %s", parsed.Link.Rel)
	}
	if !strings.Contains(parsed.Link.Template, "https://chamber.example/.well-known/webfinger") {
		t.Errorf("Unexpected template: %s", parsed.Link.Template)
	}
}

func TestGetHostMetaJSON(t *testing.T) {
	conf := testConf()
	body := GetHostMetaJSON(conf)

	var parsed struct {
		Links []struct {
			Rel      string `json:"rel"`
			Template string `json:"template"`
		} `json:"links"`
	}
	if err := json.Unmarshal([]byte(body), &parsed); err != nil {
		t.Fatalf("Host-meta is not valid JSON: %v", err)
	}
	if len(parsed.Links) != 1 || parsed.Links[0].Rel != "lrdd" {
		t.Errorf("Unexpected links: %+v", parsed.Links)
	}
	if !strings.Contains(parsed.Links[0].Template, "{uri}") {
		t.Error("Template missing the {uri} placeholder")
	}
}
