package web

import (
	"fmt"
	"github.com/deemkeen/worknet/db"
	"github.com/deemkeen/worknet/domain"
	"github.com/deemkeen/worknet/util"
)

// errActorGone marks a known but federation-disabled actor.
var errActorGone = fmt.Errorf("actor is disabled")

func GetWebfinger(user string, conf *util.AppConfig) (error, string) {

	err, actor := db.GetDB().ReadActorByUsername(user)
	if err != nil {
		return err, GetWebFingerNotFound()
	}

	if actor.Status == domain.ActorDisabled {
		return errActorGone, GetWebFingerNotFound()
	}

	username := actor.Username

	return nil, fmt.Sprintf(
		`{
					"subject": "acct:%s@%s",

					"links": [
						{
							"rel": "self",
							"type": "application/activity+json",
							"href": "https://%s/members/%s"
						}
					]
				}`, username, conf.Conf.Domain,
		conf.Conf.Domain, username)
}

func GetWebFingerNotFound() string {
	return `{"detail":"Not Found"}`
}
