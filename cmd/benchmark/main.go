// Command benchmark drives rapidbook's ConcurrentMarket with one producer
// goroutine per CPU minus two (at least one) and reports order/trade
// throughput. It is a
// collaborator, not part of the core library: nothing under orderbook/ or
// matching/ imports it.
package main

import (
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"rapidbook/domain"
	"rapidbook/matching"
	"rapidbook/orderbook"
)

const symbolID uint32 = 1

func main() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	numCPU := runtime.NumCPU()
	numWorkers := numCPU
	numProducers := numCPU - 2
	if numProducers < 1 {
		numProducers = 1
	}
	testDuration := 5 * time.Second

	var orderCount, tradeCount atomic.Int64
	tradeSink := &countingTradeSink{count: &tradeCount}

	market := matching.NewConcurrentMarket(numWorkers, func(workerID int) *orderbook.BookHandler {
		return orderbook.NewHandler(orderbook.HashMapList, domain.NopSink{}, tradeSink)
	})
	defer func() {
		if err := market.Stop(); err != nil {
			log.Error().Err(err).Msg("market stop returned error")
		}
	}()

	if err := market.AddSymbol(symbolID, "BENCHUSD"); err != nil {
		log.Fatal().Err(err).Msg("add symbol failed")
	}

	log.Info().
		Int("cpu", numCPU).
		Int("workers", numWorkers).
		Int("producers", numProducers).
		Dur("duration", testDuration).
		Msg("starting benchmark")

	startTime := time.Now()
	stop := make(chan struct{})

	for w := 0; w < numProducers; w++ {
		go runProducer(w, market, &orderCount, stop)
	}

	ticker := time.NewTicker(1 * time.Second)
	go func() {
		for range ticker.C {
			elapsed := time.Since(startTime)
			orders := orderCount.Load()
			trades := tradeCount.Load()
			fmt.Printf("[%5.1fs] orders: %8d (%9.0f/s)  trades: %8d (%9.0f/s)\n",
				elapsed.Seconds(), orders, float64(orders)/elapsed.Seconds(),
				trades, float64(trades)/elapsed.Seconds())
		}
	}()

	time.Sleep(testDuration)
	close(stop)
	ticker.Stop()
	time.Sleep(500 * time.Millisecond) // drain in-flight worker queues

	elapsed := time.Since(startTime)
	totalOrders := orderCount.Load()
	totalTrades := tradeCount.Load()

	fmt.Println()
	fmt.Println("=== results ===")
	fmt.Printf("duration:        %v\n", elapsed)
	fmt.Printf("total orders:    %d\n", totalOrders)
	fmt.Printf("total trades:    %d\n", totalTrades)
	fmt.Printf("order throughput: %.0f orders/sec\n", float64(totalOrders)/elapsed.Seconds())
	fmt.Printf("trade throughput: %.0f trades/sec\n", float64(totalTrades)/elapsed.Seconds())
	if totalOrders > 0 {
		fmt.Printf("match rate:       %.2f%%\n", float64(totalTrades)*2/float64(totalOrders)*100)
	}
}

// runProducer alternates bid/sell limit orders around a common price band
// so a meaningful fraction of them cross and trade.
func runProducer(workerID int, market *matching.ConcurrentMarket, orderCount *atomic.Int64, stop <-chan struct{}) {
	var orderID uint64
	base := uint64(workerID) << 48
	for {
		select {
		case <-stop:
			return
		default:
		}

		var side domain.Side
		if orderID%2 == 0 {
			side = domain.Bid
		} else {
			side = domain.Ask
		}
		price := int64(50000 + orderID%200)

		order, err := domain.NewLimit(base+orderID, symbolID, side, price, 1, domain.GTC)
		if err == nil {
			if err := market.AddOrder(order); err != nil {
				log.Error().Err(err).Msg("add order rejected")
			}
		}
		orderCount.Add(1)
		orderID++
	}
}

// countingTradeSink discards the trade payload but counts how many were
// recorded, and returns pooled Trades immediately since nothing else reads
// them.
type countingTradeSink struct {
	count *atomic.Int64
}

func (s *countingTradeSink) Record(t *domain.Trade) {
	s.count.Add(1)
	t.Destroy()
}
