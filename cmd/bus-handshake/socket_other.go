//go:build !linux

package main

const defaultSocket = socketPipe
