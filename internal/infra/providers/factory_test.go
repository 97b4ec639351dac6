package providers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tracetap/internal/domain"
)

func TestCounterProvidersCarryInterval(t *testing.T) {
	for _, spec := range []domain.ProviderSpec{
		SystemRuntimeCounters(5),
		AspNetHostingDefault(5),
		DnsCounters(5),
		CustomCounters("My.Counters", 5),
	} {
		value, ok := spec.Argument(IntervalArgument)
		require.True(t, ok, spec.Name)
		assert.Equal(t, "5", value)
		assert.Equal(t, domain.DefaultKeywords, spec.Keywords)
		assert.Equal(t, domain.LevelInformational, spec.Level)
	}
}

func TestAspNetHostingLevel(t *testing.T) {
	spec := AspNetHosting(2, domain.LevelVerbose)
	assert.Equal(t, AspNetHostingName, spec.Name)
	assert.Equal(t, domain.LevelVerbose, spec.Level)
}

func TestDnsEventsHasNoArguments(t *testing.T) {
	spec := DnsEvents()
	assert.Equal(t, DnsEventsName, spec.Name)
	assert.Empty(t, spec.Arguments)
	assert.Equal(t, "", spec.FilterData())
}

func TestDiagnosticSourceFilter(t *testing.T) {
	spec := DiagnosticSourceFilter()
	assert.Equal(t, DiagnosticSourceName, spec.Name)
	assert.Equal(t, uint64(0xfffffffffffff7ff), spec.Keywords)

	value, ok := spec.Argument(FilterSpecsArgument)
	require.True(t, ok)
	assert.Equal(t,
		"HttpHandlerDiagnosticListener/System.Net.Http.Request@Activity2Start:Request.RequestUri"+
			`\r\n`+
			"HttpHandlerDiagnosticListener/System.Net.Http.Response@Activity2Stop:Response.StatusCode",
		value)
	assert.NotContains(t, value, "\r")
}

func TestTplActivityTagging(t *testing.T) {
	spec := TplActivityTagging()
	assert.Equal(t, TplEventSourceName, spec.Name)
	assert.Equal(t, domain.LevelLogAlways, spec.Level)
	assert.Equal(t, uint64(0x1ff), spec.Keywords)
	assert.Empty(t, spec.Arguments)
}

func TestDefaultSet(t *testing.T) {
	specs := Default(3)
	require.Len(t, specs, 3)
	assert.Equal(t, SystemRuntimeName, specs[0].Name)
	assert.Equal(t, AspNetHostingName, specs[1].Name)
	assert.Equal(t, DnsCountersName, specs[2].Name)
}

func TestByName(t *testing.T) {
	assert.Equal(t, SystemRuntimeName, ByName("runtime", 1).Name)
	assert.Equal(t, TplEventSourceName, ByName(" TPL ", 1).Name)
	assert.Equal(t, DiagnosticSourceName, ByName("diagnostic-source", 1).Name)

	custom := ByName("Acme.Orders", 7)
	assert.Equal(t, "Acme.Orders", custom.Name)
	value, _ := custom.Argument(IntervalArgument)
	assert.Equal(t, "7", value)
}

func TestFilterDataQuotesSeparators(t *testing.T) {
	spec := domain.ProviderSpec{
		Name: "x",
		Arguments: []domain.ProviderArgument{
			{Key: "EventCounterIntervalSec", Value: "1"},
			{Key: "Filter", Value: "a=b;c"},
		},
	}
	assert.Equal(t, `EventCounterIntervalSec=1;Filter="a=b;c"`, spec.FilterData())
}
