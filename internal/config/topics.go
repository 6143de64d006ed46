package config

const (
	// TopicContentEmbed is the durable NSQ topic for content embedding jobs.
	TopicContentEmbed = "content.embed"

	// TopicSearch is the durable NSQ topic for search jobs.
	TopicSearch = "search.request"

	// TopicContentStatus carries terminal status events for content jobs.
	TopicContentStatus = "content.status"

	// TopicSearchStatus carries terminal status events for search jobs.
	TopicSearchStatus = "search.status"

	// ChannelWorker is the channel name the job consumers subscribe on.
	// One channel per topic keeps a single-consumer, in-order delivery model.
	ChannelWorker = "worker"

	// ChannelGateway is the ephemeral channel the websocket gateway subscribes
	// on. The #ephemeral suffix makes NSQ drop status events when no gateway
	// is connected instead of buffering them.
	ChannelGateway = "gateway#ephemeral"
)
