// Command rtosdemo wires a Scheduler, a handful of Threads, and a
// MessageQueue together and drives one round of send/receive traffic
// across them, tracing every step to stderr. It exists to
// exercise rtos end to end the way the teacher's host binaries exercise
// the kernel through a small flag-configured CLI.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"rtoscore/internal/buildinfo"
	"rtoscore/rtos"
)

func main() {
	var (
		queueCap = flag.Int("queue-cap", 4, "message queue capacity")
		msgBytes = flag.Int("msg-bytes", 32, "message payload size in bytes")
		threads  = flag.Int("threads", 3, "number of producer threads")
		ticks    = flag.Uint64("ticks", 50, "timeout budget, in ticks, for the final drain")
		showVer  = flag.Bool("version", false, "print build version and exit")
	)
	flag.Parse()

	if *showVer {
		fmt.Println(buildinfo.Short())
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, *queueCap, *msgBytes, *threads, *ticks); err != nil {
		fmt.Fprintln(os.Stderr, "rtosdemo:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, queueCap, msgBytes, numThreads int, ticks uint64) error {
	tracer := rtos.NewWriterTracer(os.Stderr)
	sched := rtos.NewScheduler("rtosdemo", rtos.WithTracer(tracer))
	clk := rtos.NewClock(time.Millisecond)

	go clk.Run(ctx, time.Millisecond)
	go sched.RunReaper(ctx)

	q, err := rtos.NewMessageQueue(sched, "work", queueCap, msgBytes)
	if err != nil {
		return err
	}
	defer q.Close()

	done := make(chan struct{}, numThreads)
	for i := 0; i < numThreads; i++ {
		i := i
		prio := rtos.PriorityNormal + rtos.Priority(i)
		_, err := rtos.NewThread(sched, fmt.Sprintf("producer-%d", i), prio, func(self *rtos.Thread, _ any) any {
			payload := make([]byte, msgBytes)
			copy(payload, fmt.Sprintf("hello from %s", self.Name()))
			if err := q.Send(self, payload, int32(prio)); err != nil {
				tracer.Trace("producer %q: send failed: %v", self.Name(), err)
			}
			done <- struct{}{}
			return nil
		}, nil)
		if err != nil {
			return err
		}
	}

	consumer, err := rtos.NewThread(sched, "consumer", rtos.PriorityAboveNormal, func(self *rtos.Thread, _ any) any {
		buf := make([]byte, msgBytes)
		for i := 0; i < numThreads; i++ {
			prio, err := q.TimedReceive(self, clk, buf, ticks)
			if err != nil {
				tracer.Trace("consumer: receive failed: %v", err)
				return nil
			}
			tracer.Trace("consumer: got message prio=%d: %q", prio, string(buf))
		}
		return nil
	}, nil)
	if err != nil {
		return err
	}

	for i := 0; i < numThreads; i++ {
		<-done
	}
	var out any
	_ = consumer.Join(nil, &out)

	return nil
}
