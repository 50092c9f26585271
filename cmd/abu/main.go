// Copyright 2025 Joseph Cumines

// Command abu drives a running automation bridge from the terminal: it
// sends one command per invocation and prints the resulting snapshot.
package main

func main() {
	Execute()
}
