package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math/rand/v2"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/patrickwarner/adslotgate/internal/observability"
)

var (
	server      string
	pagePath    string
	totalReq    int
	conc        int
	duration    time.Duration
	rate        float64
	optOutRate  float64
	dealerRate  float64
	stats       bool
	debug       bool
	label       string
	clientHints bool
)

var logger *zap.Logger

var httpClient *http.Client

// samplePage carries one slot per layout: desktop leaderboard, mobile banner
// through a size mapping, and a placement reference.
const samplePage = `<!doctype html><html><head><title>listing</title></head><body>
<as24-ad-slot type="doubleclick" slot-id="/4467/AS24_WEBSITE_DE/listing_top" sizes="[[728,90],[970,250]]" min-x-resolution="767"></as24-ad-slot>
<as24-ad-slot type="doubleclick" slot-id="/4467/AS24_MOBILEWEBSITE_DE/listing_top" size-mapping="[[[0,0],[[320,50],[300,100]]]]" max-x-resolution="768"></as24-ad-slot>
<as24-ad-slot placement="detailpage-content2"></as24-ad-slot>
</body></html>`

var (
	viewports = [][2]int{
		{375, 667}, {390, 844}, {414, 896}, // phones
		{768, 1024}, {820, 1180}, // tablets
		{1280, 800}, {1440, 900}, {1920, 1080}, // desktops
	}
	userAgents = []string{
		"Mozilla/5.0 (iPhone; CPU iPhone OS 16_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.0 Mobile/15E148 Safari/604.1",
		"Mozilla/5.0 (Linux; Android 12; Pixel 6 Pro) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/114.0.5735.196 Mobile Safari/537.36",
		"Mozilla/5.0 (iPad; CPU OS 15_2 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/15.2 Mobile/15E148 Safari/604.1",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 13_3_1) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.1 Safari/605.1.15",
	}
	userIPs = []string{
		"192.0.2.1",
		"198.51.100.1",
		"203.0.113.1",
	}
)

const statsInterval = 5 * time.Second

var (
	countSent     uint64
	countWithAds  uint64
	countNoAds    uint64
	countErrors   uint64
	countEligible uint64
)

func main() {
	flag.StringVar(&server, "server", "http://localhost:8790", "gate base URL")
	flag.StringVar(&pagePath, "page", "", "HTML file to render (defaults to a built-in listing page)")
	flag.IntVar(&totalReq, "requests", 1000, "total requests to send")
	flag.IntVar(&conc, "concurrency", 20, "concurrent requests")
	flag.DurationVar(&duration, "duration", 0, "how long to run traffic (0 to disable)")
	flag.Float64Var(&rate, "rate", 0, "requests per second (0 for unlimited)")
	flag.Float64Var(&optOutRate, "opt-out-rate", 0.02, "probability of sending the ads-off fragment")
	flag.Float64Var(&dealerRate, "dealer-rate", 0.1, "probability of a dealer (CustomerType=D) user cookie")
	flag.BoolVar(&clientHints, "client-hints", false, "send the viewport as Sec-CH-Viewport-* headers instead of vw/vh")
	flag.BoolVar(&stats, "stats", false, "print aggregated stats periodically")
	flag.BoolVar(&debug, "debug", false, "enable verbose debug logs")
	flag.StringVar(&label, "label", "", "label to identify this run")
	flag.Parse()

	level := zapcore.InfoLevel
	if debug {
		level = zapcore.DebugLevel
	}
	var err error
	logger, err = observability.InitLoggerWithLevel(level, "traffic-simulator", nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	page := samplePage
	if pagePath != "" {
		b, err := os.ReadFile(pagePath)
		if err != nil {
			logger.Fatal("read page", zap.Error(err))
		}
		page = string(b)
	}

	httpClient = &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			ResponseHeaderTimeout: 10 * time.Second,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			MaxConnsPerHost:       50,
			IdleConnTimeout:       90 * time.Second,
		},
	}

	if label == "" {
		label = time.Now().Format(time.RFC3339)
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, conc)
	done := make(chan struct{})

	var interval time.Duration
	if rate > 0 {
		interval = time.Duration(float64(time.Second) / rate)
	} else if duration > 0 && totalReq > 0 {
		interval = duration / time.Duration(totalReq)
	}

	if stats {
		go func() {
			ticker := time.NewTicker(statsInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					printStats()
				case <-done:
					return
				}
			}
		}()
	}

	start := time.Now()
	next := start
	for i := 0; ; i++ {
		if totalReq > 0 && i >= totalReq {
			break
		}
		if duration > 0 && time.Since(start) >= duration {
			break
		}
		if interval > 0 {
			if now := time.Now(); now.Before(next) {
				time.Sleep(next.Sub(now))
			}
			next = next.Add(interval)
		}
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			sendPage(page)
		}()
	}
	wg.Wait()
	close(done)
	printStats()
	logger.Info("run complete", zap.String("label", label), zap.Duration("elapsed", time.Since(start)))
}

func sendPage(page string) {
	atomic.AddUint64(&countSent, 1)
	vp := viewports[rand.IntN(len(viewports))]
	ip := userIPs[rand.IntN(len(userIPs))]

	target := server + "/render"
	if !clientHints {
		target += "?vw=" + strconv.Itoa(vp[0]) + "&vh=" + strconv.Itoa(vp[1])
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(page))
	if err != nil {
		atomic.AddUint64(&countErrors, 1)
		logger.Error("request build error", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "text/html")
	req.Header.Set("User-Agent", userAgents[rand.IntN(len(userAgents))])
	req.Header.Set("X-Forwarded-For", ip)
	if clientHints {
		req.Header.Set("Sec-CH-Viewport-Width", strconv.Itoa(vp[0]))
		req.Header.Set("Sec-CH-Viewport-Height", strconv.Itoa(vp[1]))
	}
	if rand.Float64() < optOutRate {
		req.Header.Set("X-Url-Fragment", "ads-off")
	}
	if rand.Float64() < dealerRate {
		req.AddCookie(&http.Cookie{Name: "User", Value: "CustomerType=D&Culture=de-DE"})
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		atomic.AddUint64(&countErrors, 1)
		logger.Error("render request error", zap.Error(err))
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		atomic.AddUint64(&countErrors, 1)
		logger.Error("unexpected status", zap.Int("status", resp.StatusCode))
		return
	}
	eligible, _ := strconv.Atoi(resp.Header.Get("X-Adslot-Eligible"))
	atomic.AddUint64(&countEligible, uint64(eligible))
	if eligible == 0 {
		atomic.AddUint64(&countNoAds, 1)
	} else {
		atomic.AddUint64(&countWithAds, 1)
	}
	logger.Debug("page rendered",
		zap.String("request_id", resp.Header.Get("X-Request-ID")),
		zap.Int("viewport_width", vp[0]),
		zap.Int("eligible", eligible))
}

func printStats() {
	logger.Info("traffic stats",
		zap.String("label", label),
		zap.Uint64("sent", atomic.LoadUint64(&countSent)),
		zap.Uint64("pages_with_ads", atomic.LoadUint64(&countWithAds)),
		zap.Uint64("pages_without_ads", atomic.LoadUint64(&countNoAds)),
		zap.Uint64("eligible_slots", atomic.LoadUint64(&countEligible)),
		zap.Uint64("errors", atomic.LoadUint64(&countErrors)))
}
