package domain

const (
	DefaultIntervalSeconds            = 1
	DefaultAttachTimeoutSeconds       = 10
	DefaultStopTimeoutSeconds         = 5
	DefaultCircularBufferMB           = 256
	DefaultObservabilityListenAddress = "0.0.0.0:9090"
	DefaultBroadcastMaxClients        = 32
	DefaultSystemName                 = ""
)
