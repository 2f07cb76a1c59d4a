// Command lookout tracks where a pilot is looking during a simulator session
// and reports how long their gaze stayed on the instrument panel.
package main

func main() {
	Execute()
}
