package main

import "github.com/trobanga/fhirpush/cmd"

func main() {
	cmd.Execute()
}
