package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/encoding/protojson"

	"github.com/joseph-ayodele/hr-extractor/internal/server"
)

func main() {
	addr := flag.String("addr", os.Getenv("GRPC_ADDR"), "daemon gRPC address")
	timeout := flag.Duration("timeout", 3*time.Second, "overall timeout")
	flag.Parse()
	if *addr == "" {
		*addr = "localhost:9090"
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	conn, err := grpc.NewClient(*addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Fatalf("dial %s: %v", *addr, err)
	}
	defer func() {
		if err := conn.Close(); err != nil {
			log.Printf("ERROR: closing connection: %v", err)
		}
	}()

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: server.ControlServiceName})
	if err != nil {
		log.Fatalf("health: FAIL (%v)", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		log.Fatalf("health: FAIL (%s)", resp.GetStatus())
	}
	log.Println("health: OK")

	st, err := server.InvokeControl(ctx, conn, "GetStatus")
	if err != nil {
		log.Fatalf("status: %v", err)
	}
	out, err := protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(st)
	if err != nil {
		log.Fatalf("encode status: %v", err)
	}
	log.Printf("status:\n%s", out)
}
