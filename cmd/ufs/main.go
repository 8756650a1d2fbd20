// Ufs exports a directory tree to 9P2000 clients.
//
// Usage:
//
//	ufs [-d] [-p address] directory
//
// The address selects the transport. "tcp!host!port" announces a TCP
// listener ("*" for all interfaces); "-" serves a single session on
// the inherited standard input and output, which must form a
// bidirectional stream; "ws!host:port" announces a WebSocket
// listener for clients that cannot open raw sockets; a path naming a
// character device opens the device and serves it as a single
// session. The default is tcp!*!564, the registered 9P port.
//
// The -d flag traces every 9P request, and every error reply, to
// standard error.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"strings"

	"golang.org/x/sys/unix"

	"aqwari.net/net/ufs"
)

var (
	debug = flag.Bool("d", false, "trace 9P messages to standard error")
	addr  = flag.String("p", "tcp!*!564", "address to serve on")
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [-d] [-p address] <directory>\n", os.Args[0])
	os.Exit(1)
}

func main() {
	log.SetFlags(0)
	log.SetPrefix("ufs: ")
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() != 1 {
		usage()
	}
	root := flag.Arg(0)

	info, err := os.Stat(root)
	if err != nil {
		log.Fatalf("cannot stat root directory %s: %v", root, err)
	}
	if !info.IsDir() {
		log.Fatalf("root path %s is not a directory", root)
	}

	srv := &ufs.Server{
		Root:     root,
		ErrorLog: log.New(os.Stderr, "ufs: ", 0),
	}
	if *debug {
		srv.TraceLog = log.New(os.Stderr, "", 0)
		log.Printf("starting 9P server on %s for %s", *addr, root)
	}

	switch {
	case *addr == "-":
		// The caller supplies the bidirectional stream, e.g.
		//	ufs -p - /path <>/dev/device
		err = srv.ServeConn(stdio{})
	case strings.HasPrefix(*addr, "tcp!"):
		var l net.Listener
		if l, err = announce(*addr); err == nil {
			err = srv.Serve(l)
		}
	case strings.HasPrefix(*addr, "ws!"):
		err = serveWebSocket(srv, strings.TrimPrefix(*addr, "ws!"))
	default:
		err = serveDevice(srv, *addr)
	}
	if err != nil {
		log.Fatal(err)
	}
}

// announce turns a dial string of the form tcp!host!port into a TCP
// listener; "*" for the host means all interfaces.
func announce(dial string) (net.Listener, error) {
	part := strings.Split(dial, "!")
	if len(part) != 3 {
		return nil, fmt.Errorf("bad dial string %q", dial)
	}
	host := part[1]
	if host == "*" {
		host = ""
	}
	return net.Listen("tcp", net.JoinHostPort(host, part[2]))
}

// serveDevice opens a character device and serves a single 9P
// session on it.
func serveDevice(srv *ufs.Server, path string) error {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return fmt.Errorf("failed to open device %s: %v", path, err)
	}
	if uint32(st.Mode)&unix.S_IFMT != unix.S_IFCHR {
		return fmt.Errorf("%s is not a character device", path)
	}
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("failed to open device %s: %v", path, err)
	}
	return srv.ServeConn(f)
}

// stdio is the inherited stdin/stdout pair as a single stream.
type stdio struct{}

func (stdio) Read(p []byte) (int, error)  { return os.Stdin.Read(p) }
func (stdio) Write(p []byte) (int, error) { return os.Stdout.Write(p) }

func (stdio) Close() error {
	os.Stdin.Close()
	return os.Stdout.Close()
}

var _ io.ReadWriteCloser = stdio{}
