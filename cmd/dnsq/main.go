// Command dnsq is a command-line DNS query tool.
//
// Usage:
//
//	dnsq -d <dns_address> -s <site_name> [-t qtype] [-f] [-l]
//	     [-A | -a type | -u type] [-T secs] [-X] | [-h] | [-V]
package main

import (
	"context"
	"encoding/binary"
	"flag"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/seanrobmerriam/dnsquery-go/pkg/dnsquery/dnslog"
	"github.com/seanrobmerriam/dnsquery-go/pkg/dnsquery/engine"
	"github.com/seanrobmerriam/dnsquery-go/pkg/dnsquery/entropy"
	"github.com/seanrobmerriam/dnsquery-go/pkg/dnsquery/privilege"
	"github.com/seanrobmerriam/dnsquery-go/pkg/dnsquery/transport"
	"github.com/seanrobmerriam/dnsquery-go/pkg/dnsquery/wire"
)

const (
	progName   = "dnsq"
	versionTag = "0.1.0"
)

var (
	dnsAddr    = flag.String("d", "", "address of a DNS resolver")
	site       = flag.String("s", "", "name of a site (i.e. www.wikipedia.org) or an IPv4 address for reverse lookup")
	queryType  = flag.String("t", "", "query type: std(default), dump, ping, info, mail, locate")
	forceTCP   = flag.Bool("f", false, "force TCP query")
	timeoutSec = flag.Int("T", 3, "set timeout to <secs> seconds")
	showLen    = flag.Bool("l", false, "print response length")
	allTypes   = flag.Bool("A", false, "print all responses of type A")
	oneType    = flag.String("a", "", "print all responses of a given type (a, aaaa, ns, cname, soa, mx, txt, loc)")
	firstType  = flag.String("u", "", "print a single response of a given type")
	trace      = flag.Bool("X", false, "trace mode: print every hop on the path to the resolver")
	unsetRD    = flag.Bool("r", false, "unset RD bit (cache snoop)")
	structured = flag.Bool("json-log", false, "emit structured JSON logs instead of text")
	logLevel   = flag.String("log-level", "warn", "log level: debug, info, warn, error")
	showVer    = flag.Bool("V", false, "version information")
)

func main() {
	flag.Usage = usage
	flag.Parse()

	if *showVer {
		fmt.Fprintf(os.Stderr, "%s version: %s\n", progName, versionTag)
		os.Exit(1)
	}

	logger := dnslog.Configure(*logLevel, *structured)

	if *dnsAddr == "" {
		paramError("you must specify -d with an address of a DNS resolver")
	}

	if *trace {
		runTrace(logger)
		return
	}

	filters := 0
	if *allTypes {
		filters++
	}
	if *oneType != "" {
		filters++
	}
	if *firstType != "" {
		filters++
	}
	if filters > 1 {
		paramError("-A, -a and -u are mutually exclusive")
	}

	if *site == "" && (*queryType == "" || *queryType != "info") {
		paramError("you must specify -s with a name of a site, or -t info")
	}

	siteQuery := *site
	if isReverseAddr(siteQuery) {
		rq, err := engine.ReverseQuery(siteQuery)
		if err != nil {
			paramError(err.Error())
		}
		siteQuery = rq
	}

	eng := engine.New(engine.WithLogger(logger))
	if err := eng.SetResolver(*dnsAddr); err != nil {
		fatal(err)
	}
	if err := eng.SetSite(siteQuery); err != nil {
		fatal(err)
	}
	if *queryType != "" {
		if !eng.SetQueryKindDescriptor(*queryType) {
			paramError("invalid query type")
		}
	}
	eng.SetForceTCP(*forceTCP)
	eng.SetTimeout(*timeoutSec)
	if *unsetRD {
		eng.SetRecursionDesired(false)
	}

	if *queryType == "ping" {
		runPing(eng)
		return
	}

	ctx := context.Background()
	if err := eng.Send(ctx); err != nil {
		fatal(err)
	}
	if eng.IsTimeout() {
		fmt.Fprintln(os.Stderr, eng.Warning())
	}

	if *showLen && *queryType != "dump" {
		fmt.Fprintf(os.Stderr, "Response Length: %d\n", eng.ResponseLength())
	}

	if *queryType == "dump" {
		fmt.Fprintf(os.Stderr, "DNS Lookup: Query: %s\nElapsed: %s\nDNS Lookup: Resp: ", eng.LastQueryText(), eng.Elapsed())
	}

	switch {
	case *allTypes:
		fmt.Println(eng.AllOfType("A"))
	case *oneType != "":
		fmt.Println(eng.AllOfType(strings.ToUpper(*oneType)))
	case *firstType != "":
		fmt.Println(eng.OneOfType(strings.ToUpper(*firstType)))
	default:
		fmt.Println(eng.OneOfType("A"))
	}

	if eng.ReturnCode() != 0 {
		fmt.Fprintf(os.Stderr, "DNS response notifies an error code: %s\n", engine.RCodeText(uint16(eng.ReturnCode())))
		os.Exit(1)
	}
}

func runPing(eng *engine.Engine) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eng.Ping(ctx, func(r engine.PingResult) {
		if r.Err != nil {
			fmt.Fprintf(os.Stderr, "dns_seq=%d error: %v\n", r.Seq, r.Err)
			return
		}
		fmt.Printf("%d bytes from %s dns_seq=%d time=%s\n", r.Bytes, *dnsAddr, r.Seq, r.Elapsed)
	})
}

func runTrace(logger interface {
	Warn(msg string, args ...any)
}) {
	if *site == "" {
		paramError("-X requires -d and -s")
	}

	ip, err := parseResolverIP(*dnsAddr)
	if err != nil {
		fatal(err)
	}

	pt, err := transport.NewPathTrace(ip, transport.DNSPort, time.Duration(*timeoutSec)*time.Second)
	if err != nil {
		fatal(err)
	}
	defer pt.Close()

	dropper := privilege.NewDropper()
	if err := dropper.Drop("cap_net_raw"); err != nil {
		logger.Warn("could not drop cap_net_raw", "error", err)
	}

	q := buildStandardQuery(*site)

	_, err = pt.Run(context.Background(), q, func(ttl, probe int, addr string, elapsed time.Duration, reachedDest bool) {
		if addr == "" {
			fmt.Printf("%d: * (probe %d timed out)\n", ttl, probe)
			return
		}
		if reachedDest {
			fmt.Printf("%d: %s (DNS answer) %s\n", ttl, addr, elapsed)
			return
		}
		fmt.Printf("%d: %s %s\n", ttl, addr, elapsed)
	})
	if err != nil {
		fatal(err)
	}
}

func parseResolverIP(addr string) ([4]byte, error) {
	ip := net.ParseIP(addr)
	if ip == nil {
		return [4]byte{}, fmt.Errorf("%q is not an IP address", addr)
	}
	v4 := ip.To4()
	if v4 == nil {
		return [4]byte{}, fmt.Errorf("%q is not an IPv4 address", addr)
	}
	return [4]byte{v4[0], v4[1], v4[2], v4[3]}, nil
}

// buildStandardQuery assembles a plain A-record query for use as the
// path-trace probe payload.
func buildStandardQuery(name string) []byte {
	var idBuf [2]byte
	if err := entropy.NewSource().Fill(idBuf[:]); err != nil {
		fatal(err)
	}
	id := binary.BigEndian.Uint16(idBuf[:])

	q := wire.Query{Site: name, Kind: wire.Standard, RecursionDesired: true}
	buf, err := q.Assemble(id)
	if err != nil {
		fatal(err)
	}
	return buf
}

func isReverseAddr(s string) bool {
	if s == "" {
		return false
	}
	_, err := engine.ReverseQuery(s)
	return err == nil
}

func paramError(msg string) {
	if msg != "" {
		fmt.Fprintln(os.Stderr, msg+"\n")
	}
	usage()
	os.Exit(1)
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func usage() {
	fmt.Fprintf(os.Stderr, "%s - a command line DNS query tool.\n\n", progName)
	fmt.Fprintf(os.Stderr, "Syntax:\n  %s -d <dns_address> -s <site_name> [-t qtype] [-f]\n", progName)
	fmt.Fprintf(os.Stderr, "    [-l] [-A | -a type | -u type] [-T secs] [-X] | [-h] | [-V]\n\n")
	flag.PrintDefaults()
}
