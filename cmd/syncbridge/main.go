// Package main 提供 syncbridge 命令行入口
package main

func main() {
	Execute()
}
