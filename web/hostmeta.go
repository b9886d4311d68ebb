package web

import (
	"fmt"
	"strings"

	"github.com/deemkeen/worknet/util"
)

// Host-meta never changes for a deployment, so responses carry a one-day
// cache header.
const HostMetaCacheControl = "public, max-age=86400"

// GetHostMetaXRD renders the XRD form of host-meta, pointing clients at
// the WebFinger endpoint.
func GetHostMetaXRD(conf *util.AppConfig) string {
	return fmt.Sprintf(
		`<?xml version="1.0" encoding="UTF-8"?>
<XRD xmlns="http://docs.oasis-open.org/ns/xri/xrd-1.0">
  <Link rel="lrdd" template="https://%s/.well-known/webfinger?resource={uri}"/>
</XRD>`, conf.Conf.Domain)
}

// GetHostMetaJSON renders the JSON form of host-meta.
func GetHostMetaJSON(conf *util.AppConfig) string {
	return fmt.Sprintf(
		`{
					"links": [
						{
							"rel": "lrdd",
							"template": "https://%s/.well-known/webfinger?resource={uri}"
						}
					]
				}`, conf.Conf.Domain)
}

// WantsHostMetaJSON decides the host-meta representation from the Accept
// header. XRD is the default, JSON only on an explicit ask.
func WantsHostMetaJSON(accept string) bool {
	accept = strings.ToLower(accept)
	return strings.Contains(accept, "application/json") ||
		strings.Contains(accept, "application/jrd+json")
}
