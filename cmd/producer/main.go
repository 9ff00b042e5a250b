// Command producer is a reference job submitter for the broker, grounded in
// original_source/src/producer/main.rs: it dials the broker and streams a
// single job submission over the Work RPC.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/rezkam/broker/internal/transport/rpc"
)

func main() {
	addr := flag.String("addr", "localhost:7070", "broker address")
	jobName := flag.String("name", "", "job name (required)")
	jobID := flag.String("id", "", "job id (required)")
	args := flag.String("args", "", "comma-separated job arguments")
	delay := flag.Duration("delay", 0, "dispatch this job after the given duration has elapsed")
	reservation := flag.Duration("reservation", 0, "how long to wait for a result before treating the attempt as failed (0 = fire-and-forget)")
	flag.Parse()

	if *jobName == "" || *jobID == "" {
		log.Fatal("producer: -name and -id are required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := grpc.NewClient(*addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Fatalf("producer: dialing %s: %v", *addr, err)
	}
	defer conn.Close()

	client := rpc.NewBrokerClient(conn)
	stream, err := client.Work(ctx)
	if err != nil {
		log.Fatalf("producer: opening Work stream: %v", err)
	}

	submission := rpc.JobSubmission{
		ID:   *jobID,
		Name: *jobName,
		Args: splitArgs(*args),
	}
	switch {
	case *delay > 0:
		seconds := delay.Seconds()
		submission.ExecutionTime = rpc.ExecutionTimeWire{Kind: "delayed", ForSeconds: &seconds}
	default:
		submission.ExecutionTime = rpc.ExecutionTimeWire{Kind: "immediate"}
	}
	if *reservation > 0 {
		seconds := reservation.Seconds()
		submission.ReservationSeconds = &seconds
	}

	if err := stream.Send(&submission); err != nil {
		log.Fatalf("producer: submitting job: %v", err)
	}

	ack, err := stream.CloseAndRecv()
	if err != nil {
		log.Fatalf("producer: closing Work stream: %v", err)
	}
	fmt.Printf("broker accepted %d job(s)\n", ack.Accepted)
}

func splitArgs(raw string) []string {
	if raw == "" {
		return nil
	}
	return strings.Split(raw, ",")
}
