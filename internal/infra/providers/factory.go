// Package providers builds the provider specs for well-known diagnostic sources.
package providers

import (
	"strconv"
	"strings"

	"tracetap/internal/domain"
)

const (
	SystemRuntimeName    = "System.Runtime"
	AspNetHostingName    = "Microsoft.AspNetCore.Hosting"
	DnsCountersName      = "Dns-RequestStatistics-Counters"
	DnsEventsName        = "Dns-RequestStatistics-Events"
	DiagnosticSourceName = "Microsoft-Diagnostics-DiagnosticSource"
	TplEventSourceName   = "System.Threading.Tasks.TplEventSource"
	IntervalArgument     = "EventCounterIntervalSec"
	FilterSpecsArgument  = "FilterAndPayloadSpecs"
)

const (
	DiagnosticKeywords  = uint64(0xfffffffffffff7ff)
	TplActivityKeywords = uint64(0x1ff)
)

// The filter-spec separator is the four literal characters \r\n.
const (
	filterSpecsLineBreak = `\r\n`
	requestFilterSpec    = "HttpHandlerDiagnosticListener/System.Net.Http.Request@Activity2Start:Request.RequestUri"
	responseFilterSpec   = "HttpHandlerDiagnosticListener/System.Net.Http.Response@Activity2Stop:Response.StatusCode"
)

// Aliases usable in configuration files.
const (
	AliasRuntime          = "runtime"
	AliasAspNet           = "aspnet"
	AliasDnsCounters      = "dns-counters"
	AliasDnsEvents        = "dns-events"
	AliasDiagnosticSource = "diagnostic-source"
	AliasTpl              = "tpl"
)

func counterSource(name string, level domain.EventLevel, intervalSec int) domain.ProviderSpec {
	return domain.ProviderSpec{
		Name:     name,
		Level:    level,
		Keywords: domain.DefaultKeywords,
		Arguments: []domain.ProviderArgument{
			{Key: IntervalArgument, Value: strconv.Itoa(intervalSec)},
		},
	}
}

// SystemRuntimeCounters enables the standard runtime counters.
func SystemRuntimeCounters(intervalSec int) domain.ProviderSpec {
	return counterSource(SystemRuntimeName, domain.LevelInformational, intervalSec)
}

// AspNetHosting enables web-host counters and events at the given level.
func AspNetHosting(intervalSec int, level domain.EventLevel) domain.ProviderSpec {
	return counterSource(AspNetHostingName, level, intervalSec)
}

// AspNetHostingDefault is AspNetHosting at Informational.
func AspNetHostingDefault(intervalSec int) domain.ProviderSpec {
	return AspNetHosting(intervalSec, domain.LevelInformational)
}

// CustomCounters enables counters from an application-defined source.
func CustomCounters(name string, intervalSec int) domain.ProviderSpec {
	return counterSource(name, domain.LevelInformational, intervalSec)
}

// CustomEvents enables events from an application-defined source.
func CustomEvents(name string) domain.ProviderSpec {
	return domain.ProviderSpec{
		Name:     name,
		Level:    domain.LevelInformational,
		Keywords: domain.DefaultKeywords,
	}
}

func DnsCounters(intervalSec int) domain.ProviderSpec {
	return CustomCounters(DnsCountersName, intervalSec)
}

func DnsEvents() domain.ProviderSpec {
	return CustomEvents(DnsEventsName)
}

// DiagnosticSourceFilter forwards outgoing HTTP request/response pairs,
// trimmed to the request URI and the response status code.
func DiagnosticSourceFilter() domain.ProviderSpec {
	specs := requestFilterSpec + filterSpecsLineBreak + responseFilterSpec
	return domain.ProviderSpec{
		Name:     DiagnosticSourceName,
		Level:    domain.LevelInformational,
		Keywords: DiagnosticKeywords,
		Arguments: []domain.ProviderArgument{
			{Key: FilterSpecsArgument, Value: specs},
		},
	}
}

// TplActivityTagging stamps related events with activity ids and enables
// task-library instrumentation.
func TplActivityTagging() domain.ProviderSpec {
	return domain.ProviderSpec{
		Name:     TplEventSourceName,
		Level:    domain.LevelLogAlways,
		Keywords: TplActivityKeywords,
	}
}

// Default is the provider set the monitor enables when none is configured.
func Default(intervalSec int) []domain.ProviderSpec {
	return []domain.ProviderSpec{
		SystemRuntimeCounters(intervalSec),
		AspNetHostingDefault(intervalSec),
		DnsCounters(intervalSec),
	}
}

// ByName resolves a configuration alias. Unknown names are treated as
// custom counter sources.
func ByName(name string, intervalSec int) domain.ProviderSpec {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case AliasRuntime:
		return SystemRuntimeCounters(intervalSec)
	case AliasAspNet:
		return AspNetHostingDefault(intervalSec)
	case AliasDnsCounters:
		return DnsCounters(intervalSec)
	case AliasDnsEvents:
		return DnsEvents()
	case AliasDiagnosticSource:
		return DiagnosticSourceFilter()
	case AliasTpl:
		return TplActivityTagging()
	default:
		return CustomCounters(strings.TrimSpace(name), intervalSec)
	}
}
