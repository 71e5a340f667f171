package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/haukened/localdns/internal/dns/domain"
	"github.com/haukened/localdns/internal/dns/gateways/wire"
)

const defaultLookupTimeout = 2 * time.Second

var errIDMismatch = errors.New("response id does not match query")

func newLookupCmd(configPath *string) *cobra.Command {
	var (
		serverAddr string
		qtype      string
		timeout    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "lookup <host>",
		Short: "Query a running server and print the answer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rrtype, ok := domain.RRTypeFromString(qtype)
			if !ok {
				return fmt.Errorf("unsupported query type %q", qtype)
			}
			if serverAddr == "" {
				cfg, _, err := loadConfig(*configPath)
				if err != nil {
					return err
				}
				serverAddr = cfg.ListenAddr()
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			resp, err := query(ctx, serverAddr, args[0], rrtype)
			if err != nil {
				return err
			}
			printResponse(cmd.OutOrStdout(), resp)
			return nil
		},
	}
	cmd.Flags().StringVar(&serverAddr, "server", "", "server address (default from config)")
	cmd.Flags().StringVar(&qtype, "type", "A", "query type")
	cmd.Flags().DurationVar(&timeout, "timeout", defaultLookupTimeout, "query timeout")
	return cmd
}

// query sends one question to addr over UDP and decodes the reply.
func query(ctx context.Context, addr, host string, rrtype domain.RRType) (domain.Message, error) {
	codec := wire.NewUDPCodec(nil)

	request := domain.NewQuery(uint16(rand.IntN(1<<16)), strings.TrimSuffix(host, "."), rrtype)
	request.Header.RecursionDesired = true
	data, err := codec.Encode(request)
	if err != nil {
		return domain.Message{}, fmt.Errorf("failed to encode query: %w", err)
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp", addr)
	if err != nil {
		return domain.Message{}, fmt.Errorf("failed to dial %s: %w", addr, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return domain.Message{}, err
		}
	}

	if _, err := conn.Write(data); err != nil {
		return domain.Message{}, fmt.Errorf("failed to send query: %w", err)
	}

	buf := make([]byte, wire.MaxPacketSize)
	n, err := conn.Read(buf)
	if err != nil {
		return domain.Message{}, fmt.Errorf("failed to read response: %w", err)
	}

	resp, err := codec.Decode(buf[:n])
	if err != nil {
		return domain.Message{}, fmt.Errorf("failed to decode response: %w", err)
	}
	if resp.Header.ID != request.Header.ID {
		return domain.Message{}, errIDMismatch
	}
	return resp, nil
}

func printResponse(w io.Writer, resp domain.Message) {
	fmt.Fprintf(w, "status: %s, answers: %d\n", resp.Header.RCode, len(resp.Answers))
	for _, rr := range resp.Answers {
		fmt.Fprintln(w, rr.String())
	}
}
