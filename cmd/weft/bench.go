package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net"
	"net/http"
	"os"
	"runtime"
	"runtime/debug"
	"runtime/metrics"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/weft-dev/weft"
	"github.com/weft-dev/weft/pkg/live"
)

const gib = int64(1024 * 1024 * 1024)

type benchProfile struct {
	Name          string
	Clients       int
	Duration      time.Duration
	WriteRPS      float64
	PayloadBytes  int
	MaxProcs      int
	MemLimitBytes int64
}

var benchProfiles = map[string]benchProfile{
	"fast": {
		Name:         "fast",
		Clients:      25,
		Duration:     10 * time.Second,
		WriteRPS:     20,
		PayloadBytes: 64,
	},
	"standard": {
		Name:         "standard",
		Clients:      100,
		Duration:     30 * time.Second,
		WriteRPS:     50,
		PayloadBytes: 64,
	},
	"stress": {
		Name:          "stress",
		Clients:       500,
		Duration:      60 * time.Second,
		WriteRPS:      200,
		PayloadBytes:  64,
		MaxProcs:      4,
		MemLimitBytes: 2 * gib,
	},
}

type benchConfig struct {
	Profile       string
	Clients       int
	Duration      time.Duration
	WriteRPS      float64
	PayloadBytes  int
	MaxProcs      int
	MemLimitBytes int64
	URL           string
	Signal        string
	Drain         time.Duration
	JSONOutput    string
}

type benchCounters struct {
	setsSent    atomic.Uint64
	setBytes    atomic.Uint64
	updatesRecv atomic.Uint64
	updateBytes atomic.Uint64
}

type benchErrors struct {
	dialFailures          atomic.Uint64
	helloFailures         atomic.Uint64
	subFailures           atomic.Uint64
	setWriteFailures      atomic.Uint64
	frameDecodeFailures   atomic.Uint64
	payloadDecodeFailures atomic.Uint64
	serverErrorFrames     atomic.Uint64
	totalErrors           atomic.Uint64
}

// benchPayload is the value written into the bench signal. The timestamp
// rides along so each subscriber can measure write-to-delivery latency.
type benchPayload struct {
	Seq uint64 `json:"seq"`
	TS  int64  `json:"ts"`
	Pad string `json:"pad,omitempty"`
}

func benchCmd() *cobra.Command {
	var (
		profileName  string
		clients      int
		duration     time.Duration
		rps          float64
		payloadBytes int
		maxProcs     int
		memLimit     string
		url          string
		signalName   string
		drain        time.Duration
		jsonOutput   string
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Benchmark propagation fan-out over WebSocket",
		Long: `Measure write-to-subscriber propagation through the gateway.

One writer connection sets the bench signal at a fixed rate while N
subscriber connections receive the resulting Update frames. Each write
carries a timestamp, so every delivery yields one latency sample
(writer Set -> subscriber decode).

By default an in-process gateway is started on a loopback port, which
keeps writer and subscriber clocks identical. Pass --url to target a
running gateway instead; the named signal must be declared there and
latency is then only as accurate as the clock sync between the two
hosts.

Profiles:
  fast       25 subscribers, 10s, 20 sets/s
  standard  100 subscribers, 30s, 50 sets/s
  stress    500 subscribers, 60s, 200 sets/s (GOMAXPROCS=4, 2GiB limit)

Examples:
  weft bench
  weft bench --profile=stress
  weft bench --clients=1000 --rps=100 --duration=2m
  weft bench --url=ws://prod:8080/ws --signal=ticker --json=-`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveBenchConfig(profileName, clients, duration, rps, payloadBytes, maxProcs, memLimit, url, signalName, drain, jsonOutput)
			if err != nil {
				return err
			}
			return runBench(cfg)
		},
	}

	cmd.Flags().StringVar(&profileName, "profile", "standard", "Profile: fast|standard|stress")
	cmd.Flags().IntVar(&clients, "clients", -1, "Number of subscriber connections")
	cmd.Flags().DurationVar(&duration, "duration", 0, "Benchmark duration, e.g. 30s")
	cmd.Flags().Float64Var(&rps, "rps", -1, "Target sets/sec from the writer")
	cmd.Flags().IntVar(&payloadBytes, "payload-bytes", -1, "Bytes of padding per update value")
	cmd.Flags().IntVar(&maxProcs, "max-procs", -1, "GOMAXPROCS cap (0 to leave unchanged)")
	cmd.Flags().StringVar(&memLimit, "mem-limit", "", "GOMEMLIMIT (e.g. 2GiB)")
	cmd.Flags().StringVar(&url, "url", "", "Target gateway WebSocket URL (default: in-process)")
	cmd.Flags().StringVar(&signalName, "signal", "bench", "Signal name to write and subscribe")
	cmd.Flags().DurationVar(&drain, "drain", time.Second, "Grace period for in-flight updates after the writer stops")
	cmd.Flags().StringVar(&jsonOutput, "json", "", "JSON report path ('-' for stdout)")

	return cmd
}

func resolveBenchConfig(
	profileName string,
	clients int,
	duration time.Duration,
	rps float64,
	payloadBytes int,
	maxProcs int,
	memLimit string,
	url, signalName string,
	drain time.Duration,
	jsonOutput string,
) (benchConfig, error) {
	name := strings.ToLower(strings.TrimSpace(profileName))
	if name == "" {
		name = "standard"
	}
	base, ok := benchProfiles[name]
	if !ok {
		return benchConfig{}, fmt.Errorf("unknown profile %q", name)
	}

	cfg := benchConfig{
		Profile:       base.Name,
		Clients:       base.Clients,
		Duration:      base.Duration,
		WriteRPS:      base.WriteRPS,
		PayloadBytes:  base.PayloadBytes,
		MaxProcs:      base.MaxProcs,
		MemLimitBytes: base.MemLimitBytes,
		URL:           strings.TrimSpace(url),
		Signal:        strings.TrimSpace(signalName),
		Drain:         drain,
		JSONOutput:    strings.TrimSpace(jsonOutput),
	}

	if clients != -1 {
		cfg.Clients = clients
	}
	if duration != 0 {
		cfg.Duration = duration
	}
	if rps != -1 {
		cfg.WriteRPS = rps
	}
	if payloadBytes != -1 {
		cfg.PayloadBytes = payloadBytes
	}
	if maxProcs != -1 {
		cfg.MaxProcs = maxProcs
	}
	if memLimit != "" {
		limit, err := parseBytes(memLimit)
		if err != nil {
			return benchConfig{}, fmt.Errorf("invalid --mem-limit: %w", err)
		}
		cfg.MemLimitBytes = limit
	}

	if cfg.Clients <= 0 {
		return benchConfig{}, errors.New("--clients must be > 0")
	}
	if cfg.Duration <= 0 {
		return benchConfig{}, errors.New("--duration must be > 0")
	}
	if cfg.WriteRPS <= 0 {
		return benchConfig{}, errors.New("--rps must be > 0")
	}
	if cfg.PayloadBytes <= 0 || cfg.PayloadBytes > 32*1024 {
		return benchConfig{}, errors.New("--payload-bytes must be in 1..32768")
	}
	if cfg.MaxProcs < 0 {
		return benchConfig{}, errors.New("--max-procs must be >= 0")
	}
	if cfg.MemLimitBytes < 0 {
		return benchConfig{}, errors.New("--mem-limit must be >= 0")
	}
	if cfg.Drain < 0 {
		return benchConfig{}, errors.New("--drain must be >= 0")
	}
	if cfg.Signal == "" {
		return benchConfig{}, errors.New("--signal must not be empty")
	}

	return cfg, nil
}

func runBench(cfg benchConfig) error {
	if cfg.MaxProcs > 0 {
		runtime.GOMAXPROCS(cfg.MaxProcs)
	}
	if cfg.MemLimitBytes > 0 {
		debug.SetMemoryLimit(cfg.MemLimitBytes)
	}
	debug.SetGCPercent(100)

	wsURL := cfg.URL
	if wsURL == "" {
		localURL, shutdown, err := startLocalGateway(cfg.Signal)
		if err != nil {
			return err
		}
		defer shutdown()
		wsURL = localURL
	}

	samplesCh := make(chan time.Duration, sampleBuffer(cfg.Clients))
	var samples []time.Duration
	var samplesMu sync.Mutex
	collectorDone := make(chan struct{})
	go func() {
		defer close(collectorDone)
		for lat := range samplesCh {
			samplesMu.Lock()
			samples = append(samples, lat)
			samplesMu.Unlock()
		}
	}()

	var counters benchCounters
	var errCounts benchErrors
	var readySubs atomic.Uint64

	var before runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&before)
	beforeMetrics := readRuntimeMetrics()

	// Subscribers first: each reports ready once it has its initial Update,
	// so the writer never races a half-subscribed pool.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var readyWg sync.WaitGroup
	readyWg.Add(cfg.Clients)

	var subWg sync.WaitGroup
	subWg.Add(cfg.Clients)
	for i := 0; i < cfg.Clients; i++ {
		clientID := i
		go func() {
			defer subWg.Done()
			var once sync.Once
			markReady := func(ok bool) {
				once.Do(func() {
					if ok {
						readySubs.Add(1)
					}
					readyWg.Done()
				})
			}
			defer markReady(false)
			if err := runBenchSubscriber(ctx, wsURL, cfg.Signal, clientID, &counters, &errCounts, samplesCh, func() { markReady(true) }); err != nil {
				errCounts.totalErrors.Add(1)
			}
		}()
	}

	readyWg.Wait()
	if readySubs.Load() == 0 {
		cancel()
		subWg.Wait()
		close(samplesCh)
		<-collectorDone
		return errors.New("no subscriber completed its handshake")
	}

	start := time.Now()
	writerCtx, writerCancel := context.WithTimeout(ctx, cfg.Duration)
	if err := runBenchWriter(writerCtx, wsURL, cfg, &counters, &errCounts); err != nil {
		errCounts.totalErrors.Add(1)
	}
	writerCancel()

	// Let in-flight updates land before tearing the subscribers down.
	time.Sleep(cfg.Drain)
	elapsed := time.Since(start)

	cancel()
	subWg.Wait()
	close(samplesCh)
	<-collectorDone

	var after runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&after)
	afterMetrics := readRuntimeMetrics()

	samplesMu.Lock()
	latencies := append([]time.Duration(nil), samples...)
	samplesMu.Unlock()
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	report := buildBenchReport(cfg, elapsed, latencies, &counters, &errCounts, readySubs.Load(), before, after, beforeMetrics, afterMetrics)

	summaryOut := os.Stdout
	if cfg.JSONOutput == "-" {
		summaryOut = os.Stderr
	}
	writeBenchSummary(summaryOut, report)

	if cfg.JSONOutput != "" {
		if err := writeBenchJSON(cfg.JSONOutput, report); err != nil {
			return fmt.Errorf("write json report: %w", err)
		}
	}

	return nil
}

// startLocalGateway serves a single-signal registry on a loopback port. The
// gateway gets its own Prometheus registry so repeated runs in one process
// never collide with the default registrations.
func startLocalGateway(signalName string) (string, func(), error) {
	reg := weft.NewRegistry()
	sig := weft.NewSignal(json.RawMessage("null")).WithEquals(
		func(a, b json.RawMessage) bool { return bytes.Equal(a, b) })
	if err := reg.Register(signalName, sig); err != nil {
		return "", nil, err
	}

	gw := live.New(reg, live.Config{
		Logger:            slog.New(slog.NewTextHandler(io.Discard, nil)),
		HeartbeatInterval: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		SendBuffer:        1024,
		MetricsOptions:    []live.MetricsOption{live.WithRegistry(prometheus.NewRegistry())},
	})

	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		return "", nil, fmt.Errorf("listen: %w", err)
	}

	httpServer := &http.Server{Handler: gw.Router()}
	go func() {
		_ = httpServer.Serve(ln)
	}()

	shutdown := func() {
		_ = httpServer.Shutdown(context.Background())
		gw.Shutdown()
	}
	return "ws://" + ln.Addr().String() + "/ws", shutdown, nil
}

// openBenchSession dials the gateway and completes the Hello handshake.
func openBenchSession(wsURL, clientName string, errCounts *benchErrors) (*websocket.Conn, error) {
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		errCounts.dialFailures.Add(1)
		return nil, fmt.Errorf("dial: %w", err)
	}

	hello, err := live.EncodeFrame(live.FrameHello, live.HelloPayload{
		Protocol: live.ProtocolVersion,
		Client:   clientName,
	})
	if err != nil {
		conn.Close()
		errCounts.helloFailures.Add(1)
		return nil, err
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, hello.Encode()); err != nil {
		conn.Close()
		errCounts.helloFailures.Add(1)
		return nil, fmt.Errorf("hello write: %w", err)
	}

	_, msg, err := conn.ReadMessage()
	if err != nil {
		conn.Close()
		errCounts.helloFailures.Add(1)
		return nil, fmt.Errorf("hello read: %w", err)
	}
	frame, err := live.DecodeFrame(msg)
	if err != nil {
		conn.Close()
		errCounts.helloFailures.Add(1)
		return nil, fmt.Errorf("hello decode: %w", err)
	}
	if frame.Type != live.FrameHelloAck {
		conn.Close()
		errCounts.helloFailures.Add(1)
		return nil, fmt.Errorf("hello: expected HelloAck, got %s", frame.Type)
	}

	return conn, nil
}

// runBenchSubscriber subscribes to the bench signal and turns every Update
// into a latency sample. It answers protocol pings so the gateway's read
// deadline never expires on an otherwise silent connection.
func runBenchSubscriber(
	ctx context.Context,
	wsURL, signalName string,
	clientID int,
	counters *benchCounters,
	errCounts *benchErrors,
	samples chan<- time.Duration,
	ready func(),
) error {
	conn, err := openBenchSession(wsURL, fmt.Sprintf("bench-sub-%d", clientID), errCounts)
	if err != nil {
		return err
	}
	defer conn.Close()

	// Unblocks the read loop when the run ends.
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	sub, err := live.EncodeFrame(live.FrameSub, live.SubPayload{Names: []string{signalName}})
	if err != nil {
		return err
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, sub.Encode()); err != nil {
		errCounts.subFailures.Add(1)
		return fmt.Errorf("sub write: %w", err)
	}

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}

		frame, err := live.DecodeFrame(msg)
		if err != nil {
			errCounts.frameDecodeFailures.Add(1)
			return err
		}

		switch frame.Type {
		case live.FrameUpdate:
			var up live.UpdatePayload
			if err := live.DecodePayload(frame, &up); err != nil {
				errCounts.payloadDecodeFailures.Add(1)
				return err
			}
			if frame.Flags.Has(live.FlagInitial) {
				ready()
				continue
			}
			counters.updatesRecv.Add(1)
			counters.updateBytes.Add(uint64(len(msg)))

			var p benchPayload
			if err := json.Unmarshal(up.Value, &p); err != nil {
				errCounts.payloadDecodeFailures.Add(1)
				continue
			}
			if p.TS > 0 {
				samples <- time.Since(time.Unix(0, p.TS))
			}

		case live.FramePing:
			var ping live.PingPayload
			if err := live.DecodePayload(frame, &ping); err != nil {
				continue
			}
			pong, err := live.EncodeFrame(live.FramePong, live.PongPayload{Timestamp: ping.Timestamp})
			if err != nil {
				continue
			}
			if err := conn.WriteMessage(websocket.BinaryMessage, pong.Encode()); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("pong write: %w", err)
			}

		case live.FrameError:
			errCounts.serverErrorFrames.Add(1)
			var ep live.ErrorPayload
			if err := live.DecodePayload(frame, &ep); err == nil {
				return fmt.Errorf("server error: %s: %s", ep.Code, ep.Message)
			}
			return errors.New("server error frame")

		default:
			// Pong, HelloAck duplicates: nothing to do.
		}
	}
}

// runBenchWriter sets the bench signal at the target rate until ctx expires.
// The writer's own Set frames keep the server's read deadline fresh, so it
// never answers pings; a drain goroutine just discards inbound frames.
func runBenchWriter(
	ctx context.Context,
	wsURL string,
	cfg benchConfig,
	counters *benchCounters,
	errCounts *benchErrors,
) error {
	conn, err := openBenchSession(wsURL, "bench-writer", errCounts)
	if err != nil {
		return err
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	pad := strings.Repeat("x", cfg.PayloadBytes)
	period := time.Duration(float64(time.Second) / cfg.WriteRPS)
	var seq uint64

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		seq++
		iterStart := time.Now()

		value, err := json.Marshal(benchPayload{
			Seq: seq,
			TS:  iterStart.UnixNano(),
			Pad: pad,
		})
		if err != nil {
			return err
		}
		set, err := live.EncodeFrame(live.FrameSet, live.SetPayload{
			Name:  cfg.Signal,
			Value: value,
		})
		if err != nil {
			return err
		}

		data := set.Encode()
		if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			errCounts.setWriteFailures.Add(1)
			return fmt.Errorf("set write: %w", err)
		}
		counters.setsSent.Add(1)
		counters.setBytes.Add(uint64(len(data)))

		if sleep := period - time.Since(iterStart); sleep > 0 {
			timer := time.NewTimer(sleep)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil
			case <-timer.C:
			}
		}
	}
}

func sampleBuffer(clients int) int {
	if clients < 1 {
		return 1024
	}
	buf := clients * 4
	if buf < 1024 {
		buf = 1024
	}
	return buf
}

func parseBytes(input string) (int64, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return 0, errors.New("empty size")
	}

	var i int
	for i < len(s) {
		c := s[i]
		if (c >= '0' && c <= '9') || c == '.' {
			i++
			continue
		}
		break
	}
	if i == 0 {
		return 0, fmt.Errorf("invalid size %q", input)
	}

	numPart := strings.TrimSpace(s[:i])
	suffix := strings.ToLower(strings.TrimSpace(s[i:]))

	value, err := strconv.ParseFloat(numPart, 64)
	if err != nil {
		return 0, err
	}

	multiplier := float64(1)
	switch suffix {
	case "", "b":
		multiplier = 1
	case "kb":
		multiplier = 1e3
	case "mb":
		multiplier = 1e6
	case "gb":
		multiplier = 1e9
	case "kib":
		multiplier = 1024
	case "mib":
		multiplier = 1024 * 1024
	case "gib":
		multiplier = 1024 * 1024 * 1024
	default:
		return 0, fmt.Errorf("unknown size suffix %q", suffix)
	}

	b := value * multiplier
	if b < 0 {
		return 0, fmt.Errorf("invalid size %q", input)
	}
	return int64(b + 0.5), nil
}

type runtimeMetricsSnapshot struct {
	cpuTotalSeconds   float64
	cpuGCSeconds      float64
	heapAllocsObjects uint64
}

func readRuntimeMetrics() runtimeMetricsSnapshot {
	samples := []metrics.Sample{
		{Name: "/cpu/classes/total:cpu-seconds"},
		{Name: "/cpu/classes/gc/total:cpu-seconds"},
		{Name: "/gc/heap/allocs:objects"},
	}
	metrics.Read(samples)

	var out runtimeMetricsSnapshot
	for _, s := range samples {
		switch s.Name {
		case "/cpu/classes/total:cpu-seconds":
			out.cpuTotalSeconds = s.Value.Float64()
		case "/cpu/classes/gc/total:cpu-seconds":
			out.cpuGCSeconds = s.Value.Float64()
		case "/gc/heap/allocs:objects":
			out.heapAllocsObjects = s.Value.Uint64()
		}
	}
	return out
}

func cpuFraction(after, before runtimeMetricsSnapshot) float64 {
	total := after.cpuTotalSeconds - before.cpuTotalSeconds
	if total <= 0 {
		return 0
	}
	gc := after.cpuGCSeconds - before.cpuGCSeconds
	if gc < 0 {
		return 0
	}
	return gc / total
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[len(sorted)-1]
	}
	idx := int(math.Ceil(float64(len(sorted))*p)) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func avgPause(after, before runtime.MemStats) time.Duration {
	gcCount := after.NumGC - before.NumGC
	if gcCount == 0 {
		return 0
	}
	return time.Duration((after.PauseTotalNs - before.PauseTotalNs) / uint64(gcCount))
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

type benchReport struct {
	Version    string         `json:"version"`
	Run        runInfo        `json:"run"`
	Workload   workloadInfo   `json:"workload"`
	LatencyMS  latencyInfo    `json:"latency_ms"`
	Throughput throughputInfo `json:"throughput"`
	Delivery   deliveryInfo   `json:"delivery"`
	GC         gcInfo         `json:"gc"`
	Errors     errorInfo      `json:"errors"`
}

type runInfo struct {
	Timestamp string `json:"timestamp"`
	Weft      string `json:"weft"`
	Commit    string `json:"commit,omitempty"`
	Go        string `json:"go"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
	CPUCount  int    `json:"cpu_count"`
}

type workloadInfo struct {
	Profile       string  `json:"profile"`
	Mode          string  `json:"mode"`
	Signal        string  `json:"signal"`
	Clients       int     `json:"clients"`
	DurationMS    int64   `json:"duration_ms"`
	WriteRPS      float64 `json:"write_rps"`
	PayloadBytes  int     `json:"payload_bytes"`
	DrainMS       int64   `json:"drain_ms"`
	MaxProcs      int     `json:"max_procs"`
	MemLimitBytes int64   `json:"mem_limit_bytes"`
}

type latencyInfo struct {
	Min float64 `json:"min"`
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
	Max float64 `json:"max"`
}

type throughputInfo struct {
	SetsTotal        uint64  `json:"sets_total"`
	UpdatesTotal     uint64  `json:"updates_total"`
	UpdatesPerSec    float64 `json:"updates_per_sec"`
	SetBytesTotal    uint64  `json:"set_bytes_total"`
	UpdateBytesTotal uint64  `json:"update_bytes_total"`
	AvgUpdateBytes   float64 `json:"avg_update_bytes"`
}

type deliveryInfo struct {
	SubscribersReady uint64  `json:"subscribers_ready"`
	UpdatesExpected  uint64  `json:"updates_expected"`
	UpdatesReceived  uint64  `json:"updates_received"`
	DeliveredRatio   float64 `json:"delivered_ratio"`
}

type gcInfo struct {
	AllocMB       float64 `json:"alloc_mb"`
	HeapLiveMB    float64 `json:"heap_live_mb"`
	NumGC         uint32  `json:"num_gc"`
	PauseTotalMS  float64 `json:"pause_total_ms"`
	PauseAvgMS    float64 `json:"pause_avg_ms"`
	GCCPUFraction float64 `json:"gc_cpu_fraction"`
	AllocsObjects uint64  `json:"allocs_objects"`
}

type errorInfo struct {
	TotalErrors           uint64 `json:"total_errors"`
	DialFailures          uint64 `json:"dial_failures"`
	HelloFailures         uint64 `json:"hello_failures"`
	SubFailures           uint64 `json:"sub_failures"`
	SetWriteFailures      uint64 `json:"set_write_failures"`
	FrameDecodeFailures   uint64 `json:"frame_decode_failures"`
	PayloadDecodeFailures uint64 `json:"payload_decode_failures"`
	ServerErrorFrames     uint64 `json:"server_error_frames"`
}

func buildBenchReport(
	cfg benchConfig,
	elapsed time.Duration,
	latencies []time.Duration,
	counters *benchCounters,
	errCounts *benchErrors,
	readySubs uint64,
	before, after runtime.MemStats,
	beforeMetrics, afterMetrics runtimeMetricsSnapshot,
) benchReport {
	setsTotal := counters.setsSent.Load()
	updatesTotal := counters.updatesRecv.Load()
	updateBytes := counters.updateBytes.Load()

	elapsedSeconds := math.Max(0.001, elapsed.Seconds())

	latency := latencyInfo{}
	if len(latencies) > 0 {
		latency = latencyInfo{
			Min: ms(latencies[0]),
			P50: ms(percentile(latencies, 0.50)),
			P95: ms(percentile(latencies, 0.95)),
			P99: ms(percentile(latencies, 0.99)),
			Max: ms(latencies[len(latencies)-1]),
		}
	}

	avgUpdateBytes := 0.0
	if updatesTotal > 0 {
		avgUpdateBytes = float64(updateBytes) / float64(updatesTotal)
	}

	expected := setsTotal * readySubs
	delivered := 0.0
	if expected > 0 {
		delivered = float64(updatesTotal) / float64(expected)
	}

	mode := "in-process"
	if cfg.URL != "" {
		mode = "remote"
	}

	pauseTotal := time.Duration(after.PauseTotalNs - before.PauseTotalNs)

	return benchReport{
		Version: "1",
		Run: runInfo{
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
			Weft:      version,
			Commit:    commit,
			Go:        runtime.Version(),
			OS:        runtime.GOOS,
			Arch:      runtime.GOARCH,
			CPUCount:  runtime.NumCPU(),
		},
		Workload: workloadInfo{
			Profile:       cfg.Profile,
			Mode:          mode,
			Signal:        cfg.Signal,
			Clients:       cfg.Clients,
			DurationMS:    cfg.Duration.Milliseconds(),
			WriteRPS:      cfg.WriteRPS,
			PayloadBytes:  cfg.PayloadBytes,
			DrainMS:       cfg.Drain.Milliseconds(),
			MaxProcs:      cfg.MaxProcs,
			MemLimitBytes: cfg.MemLimitBytes,
		},
		LatencyMS: latency,
		Throughput: throughputInfo{
			SetsTotal:        setsTotal,
			UpdatesTotal:     updatesTotal,
			UpdatesPerSec:    float64(updatesTotal) / elapsedSeconds,
			SetBytesTotal:    counters.setBytes.Load(),
			UpdateBytesTotal: updateBytes,
			AvgUpdateBytes:   avgUpdateBytes,
		},
		Delivery: deliveryInfo{
			SubscribersReady: readySubs,
			UpdatesExpected:  expected,
			UpdatesReceived:  updatesTotal,
			DeliveredRatio:   delivered,
		},
		GC: gcInfo{
			AllocMB:       float64(after.TotalAlloc-before.TotalAlloc) / (1024 * 1024),
			HeapLiveMB:    float64(after.HeapAlloc) / (1024 * 1024),
			NumGC:         after.NumGC - before.NumGC,
			PauseTotalMS:  ms(pauseTotal),
			PauseAvgMS:    ms(avgPause(after, before)),
			GCCPUFraction: cpuFraction(afterMetrics, beforeMetrics),
			AllocsObjects: afterMetrics.heapAllocsObjects - beforeMetrics.heapAllocsObjects,
		},
		Errors: errorInfo{
			TotalErrors:           errCounts.totalErrors.Load(),
			DialFailures:          errCounts.dialFailures.Load(),
			HelloFailures:         errCounts.helloFailures.Load(),
			SubFailures:           errCounts.subFailures.Load(),
			SetWriteFailures:      errCounts.setWriteFailures.Load(),
			FrameDecodeFailures:   errCounts.frameDecodeFailures.Load(),
			PayloadDecodeFailures: errCounts.payloadDecodeFailures.Load(),
			ServerErrorFrames:     errCounts.serverErrorFrames.Load(),
		},
	}
}

func writeBenchSummary(w io.Writer, report benchReport) {
	fmt.Fprintln(w, "=== Weft Gateway Benchmark ===")
	fmt.Fprintf(w, "Profile: %s (%s)\n", report.Workload.Profile, report.Workload.Mode)
	fmt.Fprintf(w, "Signal: %s\n", report.Workload.Signal)
	fmt.Fprintf(w, "Subscribers: %d (%d ready)\n", report.Workload.Clients, report.Delivery.SubscribersReady)
	fmt.Fprintf(w, "Duration: %s\n", time.Duration(report.Workload.DurationMS)*time.Millisecond)
	fmt.Fprintf(w, "Write rate: %.2f sets/s\n", report.Workload.WriteRPS)
	fmt.Fprintf(w, "Payload bytes: %d\n", report.Workload.PayloadBytes)
	if report.Workload.MaxProcs > 0 {
		fmt.Fprintf(w, "GOMAXPROCS cap: %d\n", report.Workload.MaxProcs)
	}
	if report.Workload.MemLimitBytes > 0 {
		fmt.Fprintf(w, "GOMEMLIMIT cap: %.2f GiB\n", float64(report.Workload.MemLimitBytes)/float64(gib))
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Total sets: %d\n", report.Throughput.SetsTotal)
	fmt.Fprintf(w, "Updates delivered: %d/%d (%.2f%%)\n",
		report.Delivery.UpdatesReceived, report.Delivery.UpdatesExpected, report.Delivery.DeliveredRatio*100)
	fmt.Fprintf(w, "Fan-out throughput: %.1f updates/s\n", report.Throughput.UpdatesPerSec)
	fmt.Fprintf(w, "Errors: %d\n", report.Errors.TotalErrors)
	fmt.Fprintln(w)

	if report.LatencyMS.Max == 0 {
		fmt.Fprintln(w, "No latency samples recorded.")
	} else {
		fmt.Fprintln(w, "Propagation latency (writer Set -> subscriber decode):")
		fmt.Fprintf(w, "  min: %.2f ms\n", report.LatencyMS.Min)
		fmt.Fprintf(w, "  p50: %.2f ms\n", report.LatencyMS.P50)
		fmt.Fprintf(w, "  p95: %.2f ms\n", report.LatencyMS.P95)
		fmt.Fprintf(w, "  p99: %.2f ms\n", report.LatencyMS.P99)
		fmt.Fprintf(w, "  max: %.2f ms\n", report.LatencyMS.Max)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Avg update frame: %.1f bytes\n", report.Throughput.AvgUpdateBytes)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Go runtime / GC (process-wide):")
	fmt.Fprintf(w, "  alloc:     %.2f MB\n", report.GC.AllocMB)
	fmt.Fprintf(w, "  heap_live: %.2f MB\n", report.GC.HeapLiveMB)
	fmt.Fprintf(w, "  num_gc:    %d\n", report.GC.NumGC)
	fmt.Fprintf(w, "  gc_pause:  %.2f ms (total)\n", report.GC.PauseTotalMS)
	fmt.Fprintf(w, "  gc_pause:  %.2f ms (avg)\n", report.GC.PauseAvgMS)
	fmt.Fprintf(w, "  gc_cpu:    %.2f%%\n", report.GC.GCCPUFraction*100)
}

func writeBenchJSON(path string, report benchReport) error {
	var out io.Writer
	if path == "-" {
		out = os.Stdout
	} else {
		file, err := os.Create(path)
		if err != nil {
			return err
		}
		defer file.Close()
		out = file
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
