package main

const defaultSocket = socketPair
