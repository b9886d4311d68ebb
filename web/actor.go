package web

import (
	"fmt"
	"strings"

	"github.com/deemkeen/worknet/db"
	"github.com/deemkeen/worknet/domain"
	"github.com/deemkeen/worknet/util"
)

type action uint

const (
	id action = iota
	inbox
	outbox
	sharedInbox
)

// GetActor renders the ActivityPub actor document for a local member.
// Disabled members report errActorGone so the router can answer 410.
func GetActor(username string, conf *util.AppConfig) (error, string) {
	err, actor := db.GetDB().ReadActorByUsername(username)
	if err != nil {
		return err, "{}"
	}

	if actor.Status == domain.ActorDisabled {
		return errActorGone, "{}"
	}

	pubKey := strings.Replace(actor.PublicKeyPem, "\n", "\\n", -1)

	// Use DisplayName if available, otherwise use username
	displayName := actor.DisplayName
	if displayName == "" {
		displayName = actor.Username
	}

	// Escape any quotes in summary for JSON
	summary := strings.Replace(actor.Summary, "\"", "\\\"", -1)
	summary = strings.Replace(summary, "\n", "\\n", -1)

	return nil, fmt.Sprintf(
		`{
					"@context": [
						"https://www.w3.org/ns/activitystreams",
						"https://w3id.org/security/v1"
					],

					"id": "%s",
					"type": "%s",
					"preferredUsername": "%s",
					"name" : "%s",
					"summary": "%s",
					"inbox": "%s",
					"outbox": "%s",
					"url": "%s",
					"discoverable": true,
					"endpoints": {
						"sharedInbox": "%s"
					},
					"publicKey": {
						"id": "%s#main-key",
						"owner": "%s",
						"publicKeyPem": "%s"
					}
				}`,
		getIRI(conf.Conf.Domain, actor.Username, id),
		actor.ActorType,
		actor.Username, displayName, summary,
		getIRI(conf.Conf.Domain, actor.Username, inbox),
		getIRI(conf.Conf.Domain, actor.Username, outbox),
		getIRI(conf.Conf.Domain, actor.Username, id),
		getIRI(conf.Conf.Domain, actor.Username, sharedInbox),
		getIRI(conf.Conf.Domain, actor.Username, id),
		getIRI(conf.Conf.Domain, actor.Username, id), pubKey)
}

func getIRI(domain string, username string, action action) string {

	prefix := fmt.Sprintf("https://%s/members/%s", domain, username)
	switch action {
	case inbox:
		return fmt.Sprintf("%s/inbox", prefix)
	case outbox:
		return fmt.Sprintf("%s/outbox", prefix)
	case id:
		return prefix
	case sharedInbox:
		return fmt.Sprintf("https://%s/inbox", domain)
	default:
		return ""
	}
}
