package controllers

// Ack acknowledges receipt of one URL on the put stream.
type Ack struct {
	URL string `json:"url"`
}

// DeleteQueueRequest names the queue to tear down.
type DeleteQueueRequest struct {
	Key     string `json:"key"`
	CrawlID string `json:"crawlID,omitempty"`
}

// DeleteCrawlRequest names the crawl to tear down.
type DeleteCrawlRequest struct {
	CrawlID string `json:"crawlID"`
}

// DeletedResponse reports how many URLs a delete removed.
type DeletedResponse struct {
	Deleted int64 `json:"deleted"`
}

// QueueListResponse carries the dispatchable queue keys of a crawl.
type QueueListResponse struct {
	CrawlID string   `json:"crawlID"`
	Queues  []string `json:"queues"`
}

// errorResponse is the JSON error envelope returned on non-200 statuses.
type errorResponse struct {
	Tag     string `json:"tag"`
	Message string `json:"message"`
}
