package redisrepo

import "fmt"

const (
	ACTIVE_POST_KEY   = "active-post:%s" // <username>
	POST_SLUG_KEY     = "post-slug:%s"   // <slug>
	POST_SLUG_PATTERN = "post-slug:*"
	FEED_KEY          = "feed:%d:%d" // <page>:<pageSize>
	FEED_PATTERN      = "feed:*"
	HISTORY_KEY       = "history:%s:%d:%d" // <userID>:<page>:<pageSize>
	HISTORY_PATTERN   = "history:%s:*"     // <userID>
	USER_CACHE_KEY    = "user-cache:%s"    // <userID>
)

func ActivePostKey(username string) string {
	return fmt.Sprintf(ACTIVE_POST_KEY, username)
}

func PostSlugKey(slug string) string {
	return fmt.Sprintf(POST_SLUG_KEY, slug)
}

func FeedKey(page int, pageSize int) string {
	return fmt.Sprintf(FEED_KEY, page, pageSize)
}

func HistoryKey(userID string, page int, pageSize int) string {
	return fmt.Sprintf(HISTORY_KEY, userID, page, pageSize)
}

func HistoryPattern(userID string) string {
	return fmt.Sprintf(HISTORY_PATTERN, userID)
}

func UserCacheKey(userID string) string {
	return fmt.Sprintf(USER_CACHE_KEY, userID)
}
