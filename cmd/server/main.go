package main

import "github.com/nguyentranbao-ct/crm-console/cmd"

func main() {
	cmd.Execute()
}
