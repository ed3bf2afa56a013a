package connectors

const (
	TopicConnStatus    = "conn.status"
	TopicReading       = "telemetry.reading"
	TopicCommandSent   = "led.command"
	TopicRawLineIn     = "raw.line.in"
	TopicRawLineOut    = "raw.line.out"
	TopicMalformedLine = "raw.line.malformed"
)
