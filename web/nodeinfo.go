package web

import (
	"fmt"
	"sync"
	"time"

	"github.com/deemkeen/worknet/db"
	"github.com/deemkeen/worknet/util"
)

// NodeInfo is the nodeinfo 2.0 document.
type NodeInfo struct {
	Version   string   `json:"version"`
	Software  NodeInfoSoftware `json:"software"`
	Protocols []string `json:"protocols"`
	Services  struct {
		Inbound  []string `json:"inbound"`
		Outbound []string `json:"outbound"`
	} `json:"services"`
	OpenRegistrations bool          `json:"openRegistrations"`
	Usage             NodeInfoUsage `json:"usage"`
	Metadata          struct {
		ConnectedHosts int64 `json:"connectedHosts"`
	} `json:"metadata"`
}

type NodeInfoSoftware struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type NodeInfoUsage struct {
	Users struct {
		Total int64 `json:"total"`
	} `json:"users"`
	LocalPosts int64 `json:"localPosts"`
}

// Usage counters are computed on demand and cached briefly, trading a
// little staleness for not maintaining incremental counters.
const nodeInfoCacheTtl = time.Minute

var (
	nodeInfoMu       sync.Mutex
	nodeInfoCached   *NodeInfo
	nodeInfoFetched  time.Time
)

// GetNodeInfo builds the nodeinfo 2.0 document with live usage counters.
func GetNodeInfo() (error, *NodeInfo) {
	nodeInfoMu.Lock()
	defer nodeInfoMu.Unlock()

	if nodeInfoCached != nil && time.Since(nodeInfoFetched) < nodeInfoCacheTtl {
		return nil, nodeInfoCached
	}

	database := db.GetDB()

	err, users := database.CountLocalActors()
	if err != nil {
		return fmt.Errorf("nodeinfo: failed to count users: %w", err), nil
	}
	err, posts := database.CountLocalActivities()
	if err != nil {
		return fmt.Errorf("nodeinfo: failed to count local objects: %w", err), nil
	}
	err, hosts := database.CountKnownHosts()
	if err != nil {
		return fmt.Errorf("nodeinfo: failed to count hosts: %w", err), nil
	}

	info := &NodeInfo{
		Version: "2.0",
		Software: NodeInfoSoftware{
			Name:    util.Name,
			Version: util.GetVersion(),
		},
		Protocols:         []string{"activitypub"},
		OpenRegistrations: false,
	}
	info.Services.Inbound = []string{}
	info.Services.Outbound = []string{}
	info.Usage.Users.Total = users
	info.Usage.LocalPosts = posts
	info.Metadata.ConnectedHosts = hosts

	nodeInfoCached = info
	nodeInfoFetched = time.Now()
	return nil, info
}

// GetNodeInfoDiscovery returns the well-known discovery pointer.
func GetNodeInfoDiscovery(conf *util.AppConfig) string {
	return fmt.Sprintf(
		`{
					"links": [
						{
							"rel": "http://nodeinfo.diaspora.software/ns/schema/2.0",
							"href": "https://%s/nodeinfo/2.0"
						}
					]
				}`, conf.Conf.Domain)
}
