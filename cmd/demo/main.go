// Command demo submits a short scripted sequence of orders against a
// single book and prints the resulting event stream, including a
// trailing-stop order that rests with no reference price yet, then
// activates the instant a resting ask gives the book one to trail. It is a
// collaborator, not part of the core library.
package main

import (
	"fmt"

	"rapidbook/domain"
	"rapidbook/orderbook"
)

const symbolID uint32 = 1

// printSink prints every event to stdout as it's published, in the order
// the book produces them.
type printSink struct{ n int }

func (p *printSink) Publish(e domain.Event) {
	p.n++
	switch v := e.(type) {
	case domain.SymbolAdded:
		fmt.Printf("%3d  symbol added   id=%d name=%q\n", p.n, v.SymbolID, v.Name)
	case domain.OrderAdded:
		fmt.Printf("%3d  order added    %s\n", p.n, v.Order)
	case domain.OrderUpdated:
		fmt.Printf("%3d  order updated  %s\n", p.n, v.Order)
	case domain.OrderDeleted:
		fmt.Printf("%3d  order deleted  %s\n", p.n, v.Order)
	case domain.OrderExecuted:
		fmt.Printf("%3d  order filled   %s  @%d x%d\n", p.n, v.Order, v.ExecutedPrice, v.ExecutedQuantity)
	}
}

func main() {
	sink := &printSink{}
	sink.Publish(domain.SymbolAdded{SymbolID: symbolID, Name: "DEMOUSD"})

	book := orderbook.NewBook(symbolID, orderbook.HashMapList, sink, nil)

	must := func(o domain.Order, err error) domain.Order {
		if err != nil {
			panic(err)
		}
		return o
	}

	fmt.Println("-- a resting bid, and nothing on the ask side yet --")
	check(book.Add(must(domain.NewLimit(1, symbolID, domain.Bid, 99, 10, domain.GTC))))

	fmt.Println("-- a trailing stop with no ask reference to trail: it just rests --")
	check(book.Add(must(domain.NewTrailingStop(2, symbolID, domain.Bid, 104, 3, 5, domain.IOC))))

	fmt.Println("-- the first ask arrives, giving the trailing stop a reference; it triggers and fills --")
	check(book.Add(must(domain.NewLimit(3, symbolID, domain.Ask, 101, 10, domain.GTC))))

	fmt.Println("-- one more ask, then an IOC taker that walks both levels --")
	check(book.Add(must(domain.NewLimit(4, symbolID, domain.Ask, 103, 5, domain.GTC))))
	check(book.Add(must(domain.NewLimit(5, symbolID, domain.Bid, 103, 8, domain.IOC))))

	bids, asks := book.Depth(5)
	fmt.Println("-- final depth --")
	for _, lvl := range bids {
		fmt.Printf("  bid  %d x%d (%d orders)\n", lvl.Price, lvl.Volume, lvl.Orders)
	}
	for _, lvl := range asks {
		fmt.Printf("  ask  %d x%d (%d orders)\n", lvl.Price, lvl.Volume, lvl.Orders)
	}
}

func check(err error) {
	if err != nil {
		panic(err)
	}
}
