package web

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/deemkeen/worknet/db"
	"github.com/deemkeen/worknet/util"
	"github.com/gorilla/feeds"
)

// GetAlertsFeed renders the most recent federation alerts as an RSS feed
// so operators can subscribe to dead-letter and delivery trouble without
// polling the admin API.
func GetAlertsFeed(conf *util.AppConfig) (string, error) {

	err, alerts := db.GetDB().ReadRecentAlerts(50)
	if err != nil || alerts == nil {
		log.Println("Could not get federation alerts!", err)
		return "", errors.New("error retrieving federation alerts")
	}

	link := fmt.Sprintf("https://%s/admin/alerts/feed", conf.Conf.Domain)

	feed := &feeds.Feed{
		Title:       fmt.Sprintf("%s federation alerts", conf.Conf.Domain),
		Link:        &feeds.Link{Href: link},
		Description: "operational alerts from the federation engine",
		Author:      &feeds.Author{Name: util.Name, Email: fmt.Sprintf("admin@%s", conf.Conf.Domain)},
		Created:     time.Now(),
	}

	var feedItems []*feeds.Item
	for _, alert := range *alerts {
		feedItems = append(feedItems,
			&feeds.Item{
				Id:      alert.Id.String(),
				Title:   fmt.Sprintf("[%s] %s", alert.AlertType, alert.CreatedAt.Format(util.DateTimeFormat())),
				Link:    &feeds.Link{Href: link},
				Content: alert.Message,
				Created: alert.CreatedAt,
			})
	}

	feed.Items = feedItems
	return feed.ToRss()
}
