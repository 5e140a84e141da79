// Package main provides the linkstream command line client.
//
// Usage:
//
//	linkstream crawl <url>
//	linkstream crawl --format markdown --depth 1 example.com
//
// See --help for all available options.
package main

func main() {
	Execute()
}
