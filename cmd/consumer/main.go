// Command consumer is a reference worker for the broker, grounded in
// original_source/src/consumer/main.rs: it joins one or more job names over
// the Join RPC, executes whatever is dispatched to it with a trivial
// handler, and reports the outcome back.
package main

import (
	"context"
	"flag"
	"io"
	"log"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"github.com/rezkam/broker/internal/transport/rpc"
)

func main() {
	addr := flag.String("addr", "localhost:7070", "broker address")
	jobNames := flag.String("names", "", "semicolon-separated list of job names to join (required)")
	failRate := flag.Float64("fail-rate", 0, "fraction of jobs (0-1) to report as failed, for exercising retries")
	flag.Parse()

	if *jobNames == "" {
		log.Fatal("consumer: -names is required")
	}

	ctx := context.Background()
	conn, err := grpc.NewClient(*addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Fatalf("consumer: dialing %s: %v", *addr, err)
	}
	defer conn.Close()

	joinCtx := metadata.AppendToOutgoingContext(ctx, "job_names", strings.TrimSpace(*jobNames))
	client := rpc.NewBrokerClient(conn)
	stream, err := client.Join(joinCtx)
	if err != nil {
		log.Fatalf("consumer: opening Join stream: %v", err)
	}

	seen := 0
	for {
		msg, err := stream.Recv()
		if err == io.EOF {
			return
		}
		if err != nil {
			log.Fatalf("consumer: receiving: %v", err)
		}
		if msg.Welcome != nil {
			log.Printf("consumer: joined as worker %s", msg.Welcome.WorkerID)
			continue
		}
		if msg.Dispatch == nil {
			continue
		}
		job := msg.Dispatch.Job
		status := "succeeded"
		if *failRate > 0 && shouldFail(seen, *failRate) {
			status = "failed"
		}
		seen++
		log.Printf("consumer: executing job %s (%s) -> %s", job.ID, job.Name, status)

		if err := stream.Send(&rpc.ConsumerMessage{Result: &rpc.ResultMessage{
			JobID:   job.ID,
			JobName: job.Name,
			Status:  status,
		}}); err != nil {
			log.Fatalf("consumer: reporting result: %v", err)
		}
	}
}

// shouldFail deterministically fails roughly rate of jobs, avoiding a
// dependency on math/rand just to drive a demo CLI flag.
func shouldFail(seen int, rate float64) bool {
	if rate <= 0 {
		return false
	}
	every := int(1 / rate)
	if every <= 0 {
		every = 1
	}
	return seen%every == 0
}
