package siri

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/transitlive/transitlive/arrivals"
	"github.com/transitlive/transitlive/cache"
	"github.com/transitlive/transitlive/config"
)

var monitoringRefPattern = regexp.MustCompile(`MonitoringRefStructure">([^<]+)</siri:MonitoringRef>`)

// stubProvider answers every SOAP request with one visit per requested stop.
func stubProvider(t *testing.T, requestCount *atomic.Int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestCount.Add(1)
		body, _ := io.ReadAll(r.Body)

		var visits strings.Builder
		for _, m := range monitoringRefPattern.FindAllStringSubmatch(string(body), -1) {
			fmt.Fprintf(&visits, `
          <ns3:MonitoredStopVisit>
            <ns3:RecordedAtTime>2026-03-14T09:00:00+02:00</ns3:RecordedAtTime>
            <ns3:MonitoringRef>%s</ns3:MonitoringRef>
            <ns3:MonitoredVehicleJourney>
              <ns3:LineRef>7001</ns3:LineRef>
              <ns3:VehicleRef>bus-%s</ns3:VehicleRef>
              <ns3:MonitoredCall>
                <ns3:ExpectedArrivalTime>2026-03-14T09:07:00+02:00</ns3:ExpectedArrivalTime>
              </ns3:MonitoredCall>
            </ns3:MonitoredVehicleJourney>
          </ns3:MonitoredStopVisit>`, m[1], m[1])
		}
		fmt.Fprintf(w, `<?xml version="1.0"?>
<S:Envelope xmlns:S="http://schemas.xmlsoap.org/soap/envelope/">
  <S:Body>
    <ns7:GetStopMonitoringServiceResponse xmlns:ns3="http://www.siri.org.uk/siri" xmlns:ns7="http://new.webservice.namespace">
      <Answer>
        <ns3:ResponseTimestamp>2026-03-14T09:00:30+02:00</ns3:ResponseTimestamp>
        <ns3:StopMonitoringDelivery>
          <ns3:Status>true</ns3:Status>%s
        </ns3:StopMonitoringDelivery>
      </Answer>
    </ns7:GetStopMonitoringServiceResponse>
  </S:Body>
</S:Envelope>`, visits.String())
	}))
}

func testClientConfig(url string) config.StopMonitoringConfig {
	return config.StopMonitoringConfig{
		URL:             url,
		RequestorRef:    "TEST-REF",
		Variant:         "soap",
		GroupSize:       30,
		PreviewInterval: "PT30M",
		CacheTTLSeconds: 30,
		TimeoutMS:       5000,
	}
}

func TestClientCachesVisits(t *testing.T) {
	var requests atomic.Int64
	server := stubProvider(t, &requests)
	defer server.Close()

	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}

	c := NewClient(testClientConfig(server.URL), cache.NewMemoryWithClock[arrivals.CacheEntry](clock), zerolog.Nop())
	ctx := context.Background()

	resp, err := c.Request(ctx, []string{"100", "200"}, 10)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if requests.Load() != 1 {
		t.Fatalf("expected 1 upstream request, got %d", requests.Load())
	}
	if len(resp.Visits["100"]) != 1 || len(resp.Visits["200"]) != 1 {
		t.Fatalf("unexpected visit counts: %v", resp.Visits)
	}

	// Within the TTL the cache answers everything.
	resp, err = c.Request(ctx, []string{"100", "200"}, 10)
	if err != nil {
		t.Fatalf("cached Request failed: %v", err)
	}
	if requests.Load() != 1 {
		t.Errorf("cached request should not hit upstream, got %d requests", requests.Load())
	}
	if len(resp.Visits["100"]) != 1 || len(resp.Visits["200"]) != 1 {
		t.Errorf("cached response lost visits: %v", resp.Visits)
	}
	// A fully cached response is only as fresh as its cache entries.
	want := time.Date(2026, 3, 14, 9, 0, 30, 0, time.FixedZone("", 2*60*60))
	if !resp.Timestamp.Equal(want) {
		t.Errorf("cached timestamp = %v, want %v", resp.Timestamp, want)
	}

	mu.Lock()
	now = now.Add(31 * time.Second)
	mu.Unlock()

	if _, err := c.Request(ctx, []string{"100", "200"}, 10); err != nil {
		t.Fatalf("post-expiry Request failed: %v", err)
	}
	if requests.Load() != 2 {
		t.Errorf("expired cache should refetch, got %d requests", requests.Load())
	}
}

func TestClientPartialCacheFetchesOnlyMisses(t *testing.T) {
	var requests atomic.Int64
	server := stubProvider(t, &requests)
	defer server.Close()

	c := NewClient(testClientConfig(server.URL), cache.NewMemory[arrivals.CacheEntry](), zerolog.Nop())
	ctx := context.Background()

	if _, err := c.Request(ctx, []string{"100"}, 10); err != nil {
		t.Fatal(err)
	}
	resp, err := c.Request(ctx, []string{"100", "200"}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if requests.Load() != 2 {
		t.Errorf("expected 2 upstream requests, got %d", requests.Load())
	}
	if len(resp.Visits["100"]) != 1 || len(resp.Visits["200"]) != 1 {
		t.Errorf("spliced response wrong: %v", resp.Visits)
	}
}

func TestClientSplitsLargeRequests(t *testing.T) {
	var requests atomic.Int64
	server := stubProvider(t, &requests)
	defer server.Close()

	cfg := testClientConfig(server.URL)
	cfg.GroupSize = 2
	c := NewClient(cfg, cache.NewMemory[arrivals.CacheEntry](), zerolog.Nop())

	stops := []string{"1", "2", "3", "4", "5"}
	resp, err := c.Request(context.Background(), stops, 10)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if requests.Load() != 3 {
		t.Errorf("5 stops at group size 2 should take 3 requests, got %d", requests.Load())
	}
	for _, code := range stops {
		if len(resp.Visits[code]) != 1 {
			t.Errorf("stop %s: %d visits, want 1", code, len(resp.Visits[code]))
		}
	}
}

func TestClientTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
	}))
	defer server.Close()

	visitCache := cache.NewMemory[arrivals.CacheEntry]()
	c := NewClient(testClientConfig(server.URL), visitCache, zerolog.Nop())
	ctx := context.Background()

	// Nothing cached: total failure is an error.
	if _, err := c.Request(ctx, []string{"100"}, 10); err == nil {
		t.Fatal("expected error when every group fails and nothing is cached")
	}

	// With a cached stop the failure degrades to an error string.
	entry := arrivals.CacheEntry{
		Visits:    []*arrivals.Visit{{Producer: arrivals.ProducerSIRI, StopCode: "100"}},
		Timestamp: time.Now(),
	}
	visitCache.Set(ctx, visitCacheKey("100"), entry, time.Minute)

	resp, err := c.Request(ctx, []string{"100", "200"}, 10)
	if err != nil {
		t.Fatalf("partial failure should not error: %v", err)
	}
	if len(resp.Errors) != 1 {
		t.Errorf("expected 1 error string, got %v", resp.Errors)
	}
	if len(resp.Visits["100"]) != 1 {
		t.Error("cached visits should still be served")
	}
	if visits, ok := resp.Visits["200"]; !ok || len(visits) != 0 {
		t.Error("failed stop should keep an empty visit list")
	}
}

func TestClientJSONVariant(t *testing.T) {
	var gotQuery atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery.Store(r.URL.Query())
		fmt.Fprint(w, `{
  "Siri": {
    "ServiceDelivery": {
      "ResponseTimestamp": "2026-03-14T09:00:30+02:00",
      "StopMonitoringDelivery": [
        {
          "Status": "true",
          "MonitoredStopVisit": [
            {
              "RecordedAtTime": "2026-03-14T09:00:00+02:00",
              "MonitoringRef": "100",
              "MonitoredVehicleJourney": {
                "LineRef": "7001",
                "VehicleRef": "bus-1",
                "MonitoredCall": {"ExpectedArrivalTime": "2026-03-14T09:07:00+02:00"}
              }
            }
          ]
        }
      ]
    }
  }
}`)
	}))
	defer server.Close()

	cfg := testClientConfig(server.URL)
	cfg.Variant = "json"
	c := NewClient(cfg, cache.NewMemory[arrivals.CacheEntry](), zerolog.Nop())

	resp, err := c.Request(context.Background(), []string{"100", "200"}, 10)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	q := gotQuery.Load().(url.Values)
	if got := q["Key"]; len(got) != 1 || got[0] != "TEST-REF" {
		t.Errorf("Key query param = %v", got)
	}
	if got := q["MonitoringRef"]; len(got) != 1 || got[0] != "100,200" {
		t.Errorf("MonitoringRef query param = %v", got)
	}
	if len(resp.Visits["100"]) != 1 {
		t.Errorf("visits = %v", resp.Visits)
	}
}

func TestClientMalformedResponseIsFatal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html>not a service delivery</html>`)
	}))
	defer server.Close()

	c := NewClient(testClientConfig(server.URL), cache.NewMemory[arrivals.CacheEntry](), zerolog.Nop())
	_, err := c.Request(context.Background(), []string{"100"}, 10)
	if err == nil || !strings.Contains(err.Error(), "malformed") {
		t.Errorf("expected malformed-envelope error, got %v", err)
	}
}
