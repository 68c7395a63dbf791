package main

import (
	"fmt"
	"os"
	"strconv"

	"voicebox/backend/internal/sharecode"
)

// 演示环境排障工具：在命令行生成或解码访客分享码。
func main() {
	if len(os.Args) < 3 {
		usage()
	}

	codec := sharecode.New()

	switch os.Args[1] {
	case "generate":
		mailbox, err := strconv.Atoi(os.Args[2])
		if err != nil {
			fmt.Printf("invalid mailbox number %q\n", os.Args[2])
			os.Exit(1)
		}
		code, err := codec.Generate(mailbox)
		if err != nil {
			fmt.Printf("generate failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(code)

	case "decode":
		mailbox, err := codec.Decode(os.Args[2])
		if err != nil {
			fmt.Printf("decode failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(mailbox)

	default:
		usage()
	}
}

func usage() {
	fmt.Println("Usage: sharecode generate <mailbox> | decode <code>")
	os.Exit(1)
}
