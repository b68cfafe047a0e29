// Command bt records benchmark results into a durable history and flags
// performance regressions against it.
package main

func main() {
	Execute()
}
