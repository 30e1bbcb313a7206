package main

import "github.com/civicpay-solutions/ms-go-revenue-payments/cmd"

func main() {
	cmd.Execute()
}
