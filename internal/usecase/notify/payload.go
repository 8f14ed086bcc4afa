package notify

import (
	"fmt"
	"strings"

	"manga-notify/internal/domain/entity"
	"manga-notify/internal/utils/text"
)

// Payload construction limits. Body truncation keeps push text readable on
// small lockscreens; the suffix carries the matched-criteria count.
const (
	maxTitleRunes  = 50
	maxBodyRunes   = 25
	bodyTruncRunes = 20

	notificationIcon  = "/icons/icon-192.png"
	notificationBadge = "/icons/badge-72.png"
)

// buildTitle returns the item title truncated with an ellipsis, or "#<id>"
// when the title is blank.
func buildTitle(item *entity.Item) string {
	title := strings.TrimSpace(item.Title)
	if title == "" {
		return fmt.Sprintf("#%d", item.ID)
	}
	if text.CountRunes(title) > maxTitleRunes {
		return text.TruncateRunes(title, maxTitleRunes) + "..."
	}
	return title
}

// buildBody joins the matched criteria names. When the joined string runs
// past maxBodyRunes it is cut to bodyTruncRunes and suffixed with the
// criteria count.
func buildBody(criteriaNames []string) string {
	joined := strings.Join(criteriaNames, ", ")
	if text.CountRunes(joined) <= maxBodyRunes {
		return joined
	}
	return text.TruncateRunes(joined, bodyTruncRunes) + fmt.Sprintf("...(%d개)", len(criteriaNames))
}

// buildPayload assembles the wire payload for one (user, item) notification.
func buildPayload(item *entity.Item, criteriaNames []string) *entity.NotificationPayload {
	return &entity.NotificationPayload{
		Title:           buildTitle(item),
		Body:            buildBody(criteriaNames),
		URL:             itemURL(item.ID),
		PreviewImageURL: item.Thumbnail,
		Artists:         item.Artists,
		MangaID:         item.ID,
		Icon:            notificationIcon,
		Tag:             fmt.Sprintf("manga-%d", item.ID),
		Badge:           notificationBadge,
	}
}

func itemURL(id int64) string {
	return fmt.Sprintf("/manga/%d", id)
}
